package editor

import "time"

// Clock 定时器来源，测试中可替换
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 可停止的定时器
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
