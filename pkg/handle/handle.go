package handle

// MR 是 MemoryRegion 的稳定句柄，在其所属 SystemDescription 内唯一。
type MR uint32

// PD 是 ProtectionDomain 的稳定句柄，在其所属 SystemDescription 内唯一。
type PD uint32

// Channel 是 Channel 的稳定句柄，在其所属 SystemDescription 内唯一。
type Channel uint32

// Arena 为一个 SystemDescription 分配确定性的、单调递增的句柄。
// 不是线程安全的——spec 第 5 节明确生成器单线程同步运行，不需要
// 为并发访问加锁。
type Arena struct {
	nextMR      uint32
	nextPD      uint32
	nextChannel uint32
}

// New 创建一个空的 Arena，三个命名空间都从 0 开始。
func New() *Arena {
	return &Arena{}
}

// NewMR 分配下一个 MemoryRegion 句柄。
func (a *Arena) NewMR() MR {
	h := MR(a.nextMR)
	a.nextMR++
	return h
}

// NewPD 分配下一个 ProtectionDomain 句柄。
func (a *Arena) NewPD() PD {
	h := PD(a.nextPD)
	a.nextPD++
	return h
}

// NewChannel 分配下一个 Channel 句柄。
func (a *Arena) NewChannel() Channel {
	h := Channel(a.nextChannel)
	a.nextChannel++
	return h
}
