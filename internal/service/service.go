package service

import (
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/char5742/flipmouse/internal/config"
	"github.com/char5742/flipmouse/internal/consts"
	"github.com/char5742/flipmouse/internal/control"
	"github.com/char5742/flipmouse/internal/engine"
	"github.com/char5742/flipmouse/internal/features"
	"github.com/char5742/flipmouse/internal/keymap"
	"github.com/char5742/flipmouse/internal/types"
)

// 待ち受けのタイムアウト。I/Oがなくても定期的にループが回り、
// 終了フラグを確認できるようにする。
const selectTimeoutUsec = 200000

// Service は物理デバイス・仮想デバイス・制御ソケットを束ね、
// 単一スレッドのイベントループを回す。イベント変換と状態の書き換えは
// すべてこのループ上で逐次実行されるため、ロックは使わない。
type Service struct {
	cfg        *config.Config
	state      *engine.ModeState
	translator *engine.Translator
	seq        *engine.Sequencer
	mouse      features.Mouse
	keyboards  []*features.Keyboard
	server     *control.Server
	status     *control.StatusFile
	running    atomic.Bool

	// ステータスファイル書き直し判定用の前回値
	lastEnabled bool
	lastSpeed   int32
	lastDrag    bool
}

// New は設定に従ってデバイスを検出・接続し、サービスを組み立てる
func New(cfg *config.Config) (*Service, error) {
	devices, err := features.ScanSupported(cfg.Devices.Supported)
	if err != nil {
		return nil, fmt.Errorf("デバイスの走査に失敗しました: %w", err)
	}
	if len(devices) == 0 && cfg.Devices.WaitForDevice {
		devices, err = features.WaitForSupported(cfg.Devices.Supported, cfg.Devices.WaitTimeout)
		if err != nil {
			return nil, err
		}
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("対応する入力デバイスが見つかりませんでした")
	}

	// 最初に見つかったデバイスがキーマップを決める。
	// 実行中にテーブルが切り替わることはない。
	table := keymap.ByName(devices[0].Keymap)
	if table == nil {
		return nil, fmt.Errorf("未知のキーマップです: %s", devices[0].Keymap)
	}
	log.Printf("使用するキーマップ: %s", table.Name())

	mouse, err := features.CreateMouse(cfg.Paths.Uinput, []byte("FlipMouse Virtual Mouse"))
	if err != nil {
		return nil, fmt.Errorf("仮想マウスの作成に失敗しました: %v", err)
	}

	s := &Service{cfg: cfg, mouse: mouse}

	for _, d := range devices {
		kb, err := features.OpenKeyboard(d.Path)
		if err != nil {
			s.closeDevices()
			return nil, fmt.Errorf("デバイスのオープンに失敗しました[path=%s]: %v", d.Path, err)
		}
		if err := kb.Grab(); err != nil {
			// 専有できなくても動作は続ける
			log.Printf("デバイスの専有に失敗しました: %s - %v", d.Name, err)
		}
		if err := kb.CreateClone(cfg.Paths.Uinput); err != nil {
			_ = kb.Close()
			s.closeDevices()
			return nil, fmt.Errorf("パススルーデバイスの作成に失敗しました[%s]: %v", d.Name, err)
		}
		log.Printf("デバイスを接続しました: %s (%s)", d.Name, d.Path)
		s.keyboards = append(s.keyboards, kb)
	}

	s.state = engine.NewModeState(cfg.Pointer.DefaultSpeed)
	s.seq = engine.NewSequencer(mouse, engine.Tuning{
		ParkStep:   cfg.Parking.ParkStep,
		ParkReps:   cfg.Parking.ParkReps,
		CenterStep: cfg.Parking.CenterStep,
		CenterLeft: cfg.Parking.CenterLeft,
		CenterUp:   cfg.Parking.CenterUp,
		Settle:     cfg.Parking.Settle,
	})
	s.translator = engine.NewTranslator(s.state, table, s.seq, cfg.Pointer.WheelSlowdown, cfg.Pointer.ToggleHoldSecs)
	s.status = control.NewStatusFile(cfg.Paths.Status)
	s.server = control.NewServer(cfg.Paths.Socket, s.state, s.seq, s.status, s.Stop)

	return s, nil
}

// Stop は現在のイテレーション完了後にループを終了させる。
// シグナルハンドラとquitコマンドの両方から呼ばれる。
func (s *Service) Stop() {
	s.running.Store(false)
}

// Run はイベントループを回す。終了要求かselectの致命的な失敗まで
// 戻らない。
func (s *Service) Run() error {
	defer s.cleanup()

	// 無効状態で始まるため、起動時にポインタを右下へ退避しておく
	s.seq.ParkBottomRight()
	s.snapshotStatus(true)

	if err := s.server.Listen(); err != nil {
		// 制御ソケットがなくても手動トグルは使えるので継続する
		log.Printf("制御ソケットを初期化できませんでした（継続します）: %v", err)
	}

	s.running.Store(true)
	log.Println("イベントループを開始します")

	for s.running.Load() {
		var rfds unix.FdSet
		rfds.Zero()
		maxfd := 0
		for _, kb := range s.keyboards {
			rfds.Set(kb.Fd())
			if kb.Fd() > maxfd {
				maxfd = kb.Fd()
			}
		}
		if cfd := s.server.Fd(); cfd >= 0 {
			rfds.Set(cfd)
			if cfd > maxfd {
				maxfd = cfd
			}
		}

		tv := unix.Timeval{Usec: selectTimeoutUsec}
		n, err := unix.Select(maxfd+1, &rfds, nil, nil, &tv)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("selectに失敗しました: %w", err)
		}

		// 制御ソケットを先に処理する。モード遷移でループが
		// 一時的に塞がるのは織り込み済み。
		if cfd := s.server.Fd(); n > 0 && cfd >= 0 && rfds.IsSet(cfd) {
			s.server.HandleReady()
			s.snapshotStatus(false)
		}

		if n == 0 {
			continue
		}

		for _, kb := range s.keyboards {
			if !rfds.IsSet(kb.Fd()) {
				continue
			}

			// 1レコードずつ読み、変換して即座に転送する
			ev, err := kb.ReadEvent()
			if err != nil {
				log.Printf("イベントの読み取りに失敗しました: %v", err)
				continue
			}

			s.dispatch(kb, &ev)
			s.snapshotStatus(false)
		}
	}

	log.Println("イベントループを終了します")
	return nil
}

// dispatch は変換結果に応じてイベントを出力先へ振り分ける
func (s *Service) dispatch(kb *features.Keyboard, ev *types.Event) {
	switch s.translator.Translate(ev) {
	case engine.ActionPassThrough, engine.ActionChanged:
		if err := kb.WriteEvent(ev.Type, ev.Code, ev.Value); err != nil {
			log.Printf("パススルーの書き込みに失敗しました: %v", err)
			return
		}
		_ = kb.WriteEvent(consts.EvSyn, consts.SynReport, 0)

	case engine.ActionChangedToMouse:
		if err := s.mouse.WriteEvent(ev.Type, ev.Code, ev.Value); err != nil {
			log.Printf("仮想マウスへの書き込みに失敗しました: %v", err)
			return
		}
		_ = s.mouse.WriteEvent(consts.EvSyn, consts.SynReport, 0)

	case engine.ActionMute:
		// 破棄
	}
}

// snapshotStatus は状態の組が前回から変わったときだけ
// ステータスファイルを書き直す
func (s *Service) snapshotStatus(force bool) {
	enabled, speed, drag := s.state.Snapshot()
	if !force && enabled == s.lastEnabled && speed == s.lastSpeed && drag == s.lastDrag {
		return
	}
	s.lastEnabled, s.lastSpeed, s.lastDrag = enabled, speed, drag
	if err := s.status.Write(enabled, speed, drag); err != nil {
		log.Printf("ステータスファイルの書き込みに失敗しました: %v", err)
	}
}

func (s *Service) closeDevices() {
	for _, kb := range s.keyboards {
		_ = kb.Close()
	}
	s.keyboards = nil
	if s.mouse != nil {
		_ = s.mouse.Close()
	}
}

func (s *Service) cleanup() {
	s.server.Close()
	s.closeDevices()
	log.Println("すべてのリソースを解放しました")
}
