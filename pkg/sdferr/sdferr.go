package sdferr

import "fmt"

// Kind 是 spec 第 7 节枚举的错误类别，本身实现 error 接口，
// 因此可以直接作为 errors.Is 的目标使用：errors.Is(err, sdferr.KindIdCollision)。
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// 驱动 manifest 加载 / 校验
	KindInvalidMagic  Kind = "InvalidMagic"
	KindJsonParse     Kind = "JsonParse"
	KindInvalidConfig Kind = "InvalidConfig"

	// 驱动 / 设备匹配
	KindUnknownDevice          Kind = "UnknownDevice"
	KindInvalidDeviceTreeNode  Kind = "InvalidDeviceTreeNode"
	KindInvalidDeviceTreeIndex Kind = "InvalidDeviceTreeIndex"
	KindDeviceStatusInvalid    Kind = "DeviceStatusInvalid"

	// sDDF 子系统 builder 准入
	KindDuplicateClient   Kind = "DuplicateClient"
	KindDuplicateCopier   Kind = "DuplicateCopier"
	KindDuplicateMacAddr  Kind = "DuplicateMacAddr"
	KindInvalidMacAddr    Kind = "InvalidMacAddr"
	KindInvalidClient     Kind = "InvalidClient"
	KindInvalidVirt       Kind = "InvalidVirt"
	KindInvalidOptions    Kind = "InvalidOptions"
	KindInvalidBeginStr   Kind = "InvalidBeginString"

	// 序列化时序
	KindNotConnected Kind = "NotConnected"

	// 驱动注册表
	KindCalledBeforeProbe Kind = "CalledBeforeProbe"

	// PD ID 命名空间
	KindIdCollision Kind = "IdCollision"
	KindIdExhausted Kind = "IdExhausted"

	// 分配
	KindOutOfMemory Kind = "OutOfMemory"
)

// Error 是 sdfgen 所有公开操作返回的错误类型。
type Error struct {
	Kind     Kind
	Message  string
	RawError error
}

// New 创建一个带格式化消息的 Error。
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 创建一个包装了底层错误的 Error，RawError 仅用于调试，
// 不参与 Is 比较。
func Wrap(kind Kind, rawError error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), RawError: rawError}
}

func (e *Error) Error() string {
	if e.RawError != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.RawError)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Is 支持 errors.Is(err, sdferr.KindX) 以及 errors.Is(err, otherErr)
// 两种比较方式；后者要求 Kind 相同。
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.RawError
}

var _ interface {
	Error() string
	Is(target error) bool
	Unwrap() error
} = (*Error)(nil)
