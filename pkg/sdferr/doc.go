// Package sdferr 提供 sdfgen 统一的 tagged-variant 错误类型
//
// 每个 Error 携带一个固定的 Kind（不是字符串 Code，是枚举），用于
// errors.Is 判断错误类别；RawError 保留底层错误，供调试使用，不参与
// Is 比较。
//
// 使用示例：
//
//	err := sdferr.New(sdferr.KindIdCollision, "pd %q: id %d already used", pd.Name, id)
//	if errors.Is(err, sdferr.KindIdCollision) { ... }
package sdferr
