package main

/*
#include "libsand.h"

static inline void invoke_aio_callback(SandAioContext* ctx) {
    if (ctx->cb != NULL) {
        ctx->cb(ctx);
    }
}
*/
import "C"

import (
	"unsafe"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

// newAioContext wraps a caller-owned C context and records the operation in
// it. The completion writes ret and hands the context back through its
// callback.
func newAioContext(cctx *C.SandAioContext, op sandlib.AioOp) *sandlib.AioContext {
	// AioOp values are the LIBSAND_OP values.
	cctx.op = C.LIBSAND_OP(op)

	aio := &sandlib.AioContext{
		Offset: int64(cctx.offset),
		Length: int64(cctx.length),
		Op:     op,
	}
	if cctx.buf != nil && cctx.length > 0 {
		aio.Buf = unsafe.Slice((*byte)(cctx.buf), int(cctx.length))
	}
	aio.Cb = func(done *sandlib.AioContext) {
		ret := done.Ret
		if done.Err != nil {
			ret = sandlib.Status(done.Err)
		}
		cctx.ret = C.int(ret)
		C.invoke_aio_callback(cctx)
	}
	return aio
}
