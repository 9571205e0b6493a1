package main

import (
	"bytes"
	"testing"
)

// CLI 输出通过 stdOut/stdErr 变量注入，测试期间替换为内存缓冲区，
// 这样既能断言输出内容，也不会污染测试日志。
var (
	capturedOut *bytes.Buffer
	capturedErr *bytes.Buffer
)

func useBufferWriters(t *testing.T) {
	t.Helper()

	capturedOut = &bytes.Buffer{}
	capturedErr = &bytes.Buffer{}

	prevOut, prevErr := stdOut, stdErr
	stdOut = capturedOut
	stdErr = capturedErr

	t.Cleanup(func() {
		stdOut = prevOut
		stdErr = prevErr
		capturedOut = nil
		capturedErr = nil
	})
}

func stdOutBuffer() *bytes.Buffer {
	return capturedOut
}

func stdErrBuffer() *bytes.Buffer {
	return capturedErr
}
