package arch

import "github.com/jimyag/sdfgen/pkg/sdferr"

// Architecture 枚举生成器支持的目标架构。
type Architecture string

const (
	AArch32 Architecture = "aarch32"
	AArch64 Architecture = "aarch64"
	RISCV32 Architecture = "riscv32"
	RISCV64 Architecture = "riscv64"
	X86     Architecture = "x86"
	X86_64  Architecture = "x86_64"
)

// defaultPageSize 是所有受支持架构的默认页大小（4 KiB）。
// spec 未要求任何架构使用不同的默认值；MemoryRegion 上的
// "page-size class" 字段留给调用方在需要大页时显式覆盖。
const defaultPageSize uint64 = 4096

// Parse 将字符串解析为 Architecture，未知值返回 InvalidConfig。
func Parse(s string) (Architecture, error) {
	switch Architecture(s) {
	case AArch32, AArch64, RISCV32, RISCV64, X86, X86_64:
		return Architecture(s), nil
	default:
		return "", sdferr.New(sdferr.KindInvalidConfig, "unknown architecture %q", s)
	}
}

// PageSize 返回该架构的默认页大小（字节）。
func (a Architecture) PageSize() uint64 {
	return defaultPageSize
}

// AddressBits 返回该架构的虚拟地址宽度，供调用方做地址范围校验使用。
func (a Architecture) AddressBits() int {
	switch a {
	case AArch32, RISCV32, X86:
		return 32
	default:
		return 64
	}
}

// AlignUp 将 n 向上对齐到该架构的页大小的整数倍。
func (a Architecture) AlignUp(n uint64) uint64 {
	return AlignUpTo(n, a.PageSize())
}

// IsAligned 判断 n 是否已经是该架构页大小的整数倍。
func (a Architecture) IsAligned(n uint64) bool {
	return n%a.PageSize() == 0
}

// AlignUpTo 将 n 向上对齐到 pageSize 的整数倍，pageSize 必须是 2 的幂。
func AlignUpTo(n, pageSize uint64) uint64 {
	if pageSize == 0 {
		return n
	}
	return (n + pageSize - 1) &^ (pageSize - 1)
}
