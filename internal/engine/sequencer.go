package engine

import (
	"log"
	"time"

	"github.com/char5742/flipmouse/internal/consts"
)

// EventWriter は出力デバイスへ1イベントを書き込むインターフェース
type EventWriter interface {
	WriteEvent(evType uint16, code uint16, value int32) error
}

// Tuning はモード切り替え時のポインタ位置合わせの調整値
type Tuning struct {
	ParkStep   int32         // 右下退避1回あたりの移動量
	ParkReps   int           // 右下退避の繰り返し回数
	CenterStep int32         // 中央移動1ステップの最大移動量
	CenterLeft int32         // 右下から中央までの左方向の距離
	CenterUp   int32         // 右下から中央までの上方向の距離
	Settle     time.Duration // 各ステップ後の待ち時間
}

// DefaultTuning はTCL Flip 2（画面240x320）向けの調整値を返す
func DefaultTuning() Tuning {
	return Tuning{
		ParkStep:   200,
		ParkReps:   40,
		CenterStep: 20,
		CenterLeft: 40,
		CenterUp:   60,
		Settle:     2 * time.Millisecond,
	}
}

// Sequencer はモード切り替えのたびにポインタを既知の位置へ移動させる。
// 出力デバイスには絶対座標の問い合わせ手段がないため、画面端への
// 飽和移動（十分な回数の大きな相対移動）で位置を確定させる。
type Sequencer struct {
	mouse  EventWriter
	tuning Tuning
}

// NewSequencer は仮想マウスへ出力するシーケンサーを作成する
func NewSequencer(mouse EventWriter, tuning Tuning) *Sequencer {
	return &Sequencer{mouse: mouse, tuning: tuning}
}

// relEmit は相対移動1回と同期イベントを書き込む。
// 書き込みエラーはステップ数の決定性を保つため無視する。
func (q *Sequencer) relEmit(dx, dy int32) {
	if q.mouse == nil {
		return
	}
	if dx != 0 {
		_ = q.mouse.WriteEvent(consts.EvRel, consts.RelX, dx)
	}
	if dy != 0 {
		_ = q.mouse.WriteEvent(consts.EvRel, consts.RelY, dy)
	}
	_ = q.mouse.WriteEvent(consts.EvSyn, consts.SynReport, 0)
}

// ParkBottomRight はポインタを画面右下の角へ退避させる。
// 事前位置によらず確実に角へ到達するよう固定回数だけ移動する。
func (q *Sequencer) ParkBottomRight() {
	for i := 0; i < q.tuning.ParkReps; i++ {
		q.relEmit(q.tuning.ParkStep, q.tuning.ParkStep)
		time.Sleep(q.tuning.Settle)
	}
	log.Println("ポインタを右下へ退避しました")
}

// moveFromParkToCenter は右下の角から基準位置へポインタを戻す。
// 両軸を同時に動かすと挙動が乱れる環境があるため、X軸を
// 動かし切ってからY軸を動かす。
func (q *Sequencer) moveFromParkToCenter() {
	left := q.tuning.CenterLeft
	up := q.tuning.CenterUp

	for left > 0 {
		step := left
		if step > q.tuning.CenterStep {
			step = q.tuning.CenterStep
		}
		q.relEmit(-step, 0)
		left -= step
		time.Sleep(q.tuning.Settle)
	}

	for up > 0 {
		step := up
		if step > q.tuning.CenterStep {
			step = q.tuning.CenterStep
		}
		q.relEmit(0, -step)
		up -= step
		time.Sleep(q.tuning.Settle)
	}
}

// OnTransition はモードの有効・無効が切り替わった直後に呼ばれる。
// 変化がなければ何もしない。呼び出し元のループをステップ完了まで
// ブロックする。
func (q *Sequencer) OnTransition(wasEnabled, nowEnabled bool, cause string) {
	if wasEnabled == nowEnabled {
		return
	}

	if nowEnabled {
		// 有効化: 位置を確定させてから基準位置へ移動する
		q.ParkBottomRight()
		q.moveFromParkToCenter()
		log.Printf("マウスモードを有効化しました (%s)", cause)
	} else {
		// 無効化: 退避のみ
		q.ParkBottomRight()
		log.Printf("マウスモードを無効化しました (%s)", cause)
	}
}
