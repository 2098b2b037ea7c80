package consts

// UIInput デバイスの定数（uinput.hから）
const (
	MaxNameSize = 80         // デバイス名の最大サイズ
	DevCreate   = 0x5501     // デバイス作成用のIOCTL
	DevDestroy  = 0x5502     // デバイス破棄用のIOCTL
	SetEvBit    = 0x40045564 // イベントビット設定用のIOCTL
	SetKeyBit   = 0x40045565 // キービット設定用のIOCTL
	SetRelBit   = 0x40045566 // 相対座標ビット設定用のIOCTL
	SetMscBit   = 0x40045568 // その他イベントビット設定用のIOCTL
	BusUsb      = 0x03       // USBバスタイプ
)

// evdevデバイス制御用定数
const (
	AbsSize    = 64         // 絶対座標の配列サイズ
	KeyMax     = 0x2ff      // キーコードの最大値
	EVIOCGRAB  = 0x40044590 // デバイスの排他制御用のIOCTL
	EviocgName = 0x81004506 // デバイス名取得用のIOCTL（バッファ256バイト）
)

// EviocgBit はデバイスの対応イベント問い合わせ用のIOCTL値を返す。
// evType=0 で対応イベントタイプの一覧、それ以外で該当タイプのコード一覧。
func EviocgBit(evType int, length int) uintptr {
	return uintptr(2<<30 | length<<16 | 'E'<<8 | (0x20 + evType))
}
