// Package arch 描述生成系统所针对的目标架构：页大小与页对齐策略。
//
// Architecture 在一个 SystemDescription 创建之后是不可变的（spec 第 3 节）。
package arch
