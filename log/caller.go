package log

import (
	"runtime"
	"strings"
	"sync"
)

// callerBaseSkip is the number of frames between runtime.Caller and the
// user's call site: resolve, newEntry, submit and the severity method.
const callerBaseSkip = 4

var _unknownCaller = &callerInfo{file: "unknown", function: "unknown"}

type callerInfo struct {
	file     string
	function string
	line     int
}

// callerResolver resolves the source location of a log call site and caches
// the result per program counter, since a given call site never moves.
type callerResolver struct {
	skip  int // extra frames to skip for wrapper layers
	cache sync.Map
}

// resolve returns the caller information for the active log call.
// The hot path is a single runtime.Caller plus a map load.
func (r *callerResolver) resolve() *callerInfo {
	pc, file, line, ok := runtime.Caller(callerBaseSkip + r.skip)
	if !ok {
		return _unknownCaller
	}

	if cached, found := r.cache.Load(pc); found {
		return cached.(*callerInfo)
	}

	funcName := runtime.FuncForPC(pc).Name()
	function := funcName
	if dotIdx := strings.LastIndexByte(funcName, '.'); dotIdx != -1 {
		function = funcName[dotIdx+1:]
	}

	// Keep at most the last two path segments of the file, zero-copy.
	if lastSlash := strings.LastIndexByte(file, '/'); lastSlash > 0 {
		if secondLastSlash := strings.LastIndexByte(file[:lastSlash], '/'); secondLastSlash >= 0 {
			file = file[secondLastSlash+1:]
		}
	}

	c := &callerInfo{file: file, function: function, line: line}
	r.cache.Store(pc, c)

	return c
}
