// Command libsand builds the C shared library:
//
//	go build -buildmode=c-shared -o libsand.so ./cmd/libsand
package main

/*
#include <stdlib.h>
#include <string.h>
#include "libsand.h"
*/
import "C"

import (
	"unsafe"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
	"github.com/AnishMulay/sandblock/clients/libsand"
)

func main() {}

var paramError = C.int(-int(sandlib.CodeParamError))

func goUser(u *C.C_UserInfo_t) sandlib.UserInfo {
	if u == nil {
		return sandlib.UserInfo{}
	}
	return sandlib.UserInfo{
		Owner:    goName(&u.owner),
		Password: goName(&u.password),
	}
}

func goName(field *[libsand.NameMaxSize]C.char) string {
	return libsand.NameString(unsafe.Slice((*byte)(unsafe.Pointer(&field[0])), len(field)))
}

// goBytes views C memory without copying.
func goBytes(buf *C.char, length C.size_t) []byte {
	if buf == nil || length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(length))
}

func putName(dst *[libsand.NameMaxSize]C.char, src []byte) {
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < len(dst)-1 && i < len(src) && src[i] != 0; i++ {
		dst[i] = C.char(src[i])
	}
}

func fillStat(dst *C.FileStatInfo_t, rec libsand.FileStatRecord) {
	dst.id = C.uint64_t(rec.ID)
	dst.parentid = C.uint64_t(rec.ParentID)
	dst.filetype = C.int(rec.FileType)
	dst.length = C.uint64_t(rec.Length)
	dst.ctime = C.uint64_t(rec.Ctime)
	putName(&dst.filename, rec.FileName[:])
	putName(&dst.owner, rec.Owner[:])
}

//export Init
func Init(path *C.char) C.int {
	return C.int(libsand.Init(C.GoString(path)))
}

//export UnInit
func UnInit() {
	libsand.UnInit()
}

//export Open
func Open(filename *C.char, userinfo *C.C_UserInfo_t) C.int {
	return C.int(libsand.Open(C.GoString(filename), goUser(userinfo)))
}

//export Open4Qemu
func Open4Qemu(filename *C.char) C.int {
	return C.int(libsand.Open4Qemu(C.GoString(filename)))
}

//export Close
func Close(fd C.int) C.int {
	return C.int(libsand.Close(int(fd)))
}

//export Read
func Read(fd C.int, buf *C.char, offset C.off_t, length C.size_t) C.int {
	return C.int(libsand.Read(int(fd), goBytes(buf, length), int64(offset)))
}

//export Write
func Write(fd C.int, buf *C.char, offset C.off_t, length C.size_t) C.int {
	return C.int(libsand.Write(int(fd), goBytes(buf, length), int64(offset)))
}

//export AioRead
func AioRead(fd C.int, aioctx *C.SandAioContext) C.int {
	if aioctx == nil {
		return paramError
	}
	return C.int(libsand.AioRead(int(fd), newAioContext(aioctx, sandlib.AioOpRead)))
}

//export AioWrite
func AioWrite(fd C.int, aioctx *C.SandAioContext) C.int {
	if aioctx == nil {
		return paramError
	}
	return C.int(libsand.AioWrite(int(fd), newAioContext(aioctx, sandlib.AioOpWrite)))
}

//export Create
func Create(filename *C.char, userinfo *C.C_UserInfo_t, size C.size_t) C.int {
	return C.int(libsand.Create(C.GoString(filename), goUser(userinfo), uint64(size)))
}

//export Rename
func Rename(userinfo *C.C_UserInfo_t, oldpath *C.char, newpath *C.char) C.int {
	return C.int(libsand.Rename(goUser(userinfo), C.GoString(oldpath), C.GoString(newpath)))
}

//export Extend
func Extend(filename *C.char, userinfo *C.C_UserInfo_t, newsize C.uint64_t) C.int {
	return C.int(libsand.Extend(C.GoString(filename), goUser(userinfo), uint64(newsize)))
}

//export Extend4Qemu
func Extend4Qemu(filename *C.char, newsize C.int64_t) C.int64_t {
	return C.int64_t(libsand.Extend4Qemu(C.GoString(filename), int64(newsize)))
}

//export Unlink
func Unlink(filename *C.char, userinfo *C.C_UserInfo_t) C.int {
	return C.int(libsand.Unlink(C.GoString(filename), goUser(userinfo)))
}

//export DeleteForce
func DeleteForce(filename *C.char, userinfo *C.C_UserInfo_t) C.int {
	return C.int(libsand.DeleteForce(C.GoString(filename), goUser(userinfo)))
}

//export Mkdir
func Mkdir(dirpath *C.char, userinfo *C.C_UserInfo_t) C.int {
	return C.int(libsand.Mkdir(C.GoString(dirpath), goUser(userinfo)))
}

//export Rmdir
func Rmdir(dirpath *C.char, userinfo *C.C_UserInfo_t) C.int {
	return C.int(libsand.Rmdir(C.GoString(dirpath), goUser(userinfo)))
}

//export ChangeOwner
func ChangeOwner(filename *C.char, newOwner *C.char, userinfo *C.C_UserInfo_t) C.int {
	return C.int(libsand.ChangeOwner(C.GoString(filename), C.GoString(newOwner), goUser(userinfo)))
}

//export StatFile
func StatFile(filename *C.char, userinfo *C.C_UserInfo_t, finfo *C.FileStatInfo_t) C.int {
	if finfo == nil {
		return paramError
	}
	var st sandlib.FileStatInfo
	if rc := libsand.StatFile(C.GoString(filename), goUser(userinfo), &st); rc != 0 {
		return C.int(rc)
	}
	fillStat(finfo, libsand.RecordFromStat(st))
	return 0
}

//export StatFile4Qemu
func StatFile4Qemu(filename *C.char, finfo *C.FileStatInfo_t) C.int {
	if finfo == nil {
		return paramError
	}
	var st sandlib.FileStatInfo
	if rc := libsand.StatFile4Qemu(C.GoString(filename), &st); rc != 0 {
		return C.int(rc)
	}
	fillStat(finfo, libsand.RecordFromStat(st))
	return 0
}

// OpenDir returns NULL when the library is not initialized. The handle owns
// copies of dirpath and userinfo.
//
//export OpenDir
func OpenDir(dirpath *C.char, userinfo *C.C_UserInfo_t) *C.DirInfo_t {
	if libsand.OpenDir(C.GoString(dirpath), goUser(userinfo)) == nil {
		return nil
	}

	dir := (*C.DirInfo_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.DirInfo_t{}))))
	dir.dirpath = C.strdup(dirpath)
	dir.userinfo = (*C.C_UserInfo_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.C_UserInfo_t{}))))
	if userinfo != nil {
		*dir.userinfo = *userinfo
	}
	return dir
}

//export Listdir
func Listdir(dir *C.DirInfo_t) C.int {
	if dir == nil {
		return paramError
	}
	info := &libsand.DirInfo{DirPath: C.GoString(dir.dirpath), User: goUser(dir.userinfo)}
	if rc := libsand.Listdir(info); rc != 0 {
		return C.int(rc)
	}

	freeEntries(dir)
	n := len(info.FileStat)
	if n == 0 {
		return 0
	}
	p := C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.FileStatInfo_t{})))
	entries := unsafe.Slice((*C.FileStatInfo_t)(p), n)
	for i, rec := range info.FileStat {
		fillStat(&entries[i], rec)
	}
	dir.fileStat = (*C.FileStatInfo_t)(p)
	dir.dirSize = C.uint64_t(n)
	return 0
}

func freeEntries(dir *C.DirInfo_t) {
	if dir.fileStat != nil {
		C.free(unsafe.Pointer(dir.fileStat))
	}
	dir.fileStat = nil
	dir.dirSize = 0
}

//export CloseDir
func CloseDir(dir *C.DirInfo_t) {
	if dir == nil {
		return
	}
	freeEntries(dir)
	C.free(unsafe.Pointer(dir.dirpath))
	C.free(unsafe.Pointer(dir.userinfo))
	C.free(unsafe.Pointer(dir))
}
