// Package handle 提供确定性的、单调递增的 arena 句柄分配器
//
// spec 要求 SystemDescription 对构建顺序相同的输入产生完全相同的
// XML 输出（toXml 的确定性不变量），因此句柄不能使用基于时间戳的算法
// （如 sonyflake）生成——同一次构建的两次运行，句柄必须逐位相同。
// Arena 退化为一个按插入顺序递增的计数器，每种资源（MemoryRegion、
// ProtectionDomain、Channel）各有自己的命名空间。
package handle
