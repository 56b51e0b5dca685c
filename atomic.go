package sst

import "sync/atomic"

// atomicFlag is a small boolean flag safe for concurrent use, used where a
// plain sync/atomic.Bool would be equally correct but the set/clear/get
// vocabulary reads better at call sites (the Connection broken flag).
type atomicFlag struct {
	flag int32
}

func (f *atomicFlag) set()      { atomic.StoreInt32(&f.flag, 1) }
func (f *atomicFlag) get() bool { return atomic.LoadInt32(&f.flag) == 1 }
func (f *atomicFlag) clear()    { atomic.StoreInt32(&f.flag, 0) }
