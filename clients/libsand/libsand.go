// Package libsand is the flattened interface over one process-wide FileClient.
// Every function returns 0 or a non-negative count on success and -code on
// failure; calls made before GlobalInit succeeds return -Failed.
package libsand

import (
	"sync"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

var (
	// mu is held for writing by GlobalInit and GlobalUnInit and for reading by
	// every forwarded call, so teardown waits for calls already in progress.
	mu     sync.RWMutex
	global *sandlib.FileClient

	newFileClient = sandlib.NewFileClient
)

var statusFailed = -int(sandlib.CodeFailed)

// GlobalInit creates and initializes the process client. Repeated calls after
// success return 0 without doing anything.
func GlobalInit(configPath string) int {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return 0
	}
	c := newFileClient()
	if err := c.Init(configPath); err != nil {
		return sandlib.Status(err)
	}
	global = c
	return 0
}

// GlobalUnInit is safe to call when no client exists.
func GlobalUnInit() {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		return
	}
	global.UnInit()
	global = nil
}

func initialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return global != nil
}

func withClient(fn func(c *sandlib.FileClient) int) int {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return statusFailed
	}
	return fn(global)
}

func Init(configPath string) int { return GlobalInit(configPath) }

func UnInit() { GlobalUnInit() }

func Open(filename string, user sandlib.UserInfo) int {
	return withClient(func(c *sandlib.FileClient) int {
		fd, err := c.Open(filename, user)
		if err != nil {
			return sandlib.Status(err)
		}
		return fd
	})
}

// Open4Qemu takes the owner from a filename of the form <realname>_<owner>_.
func Open4Qemu(filename string) int {
	realname, owner, ok := UserFromFilename(filename)
	if !ok {
		return statusFailed
	}
	return Open(realname, sandlib.UserInfo{Owner: owner})
}

func Close(fd int) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Close(fd))
	})
}

func Read(fd int, buf []byte, offset int64) int {
	return withClient(func(c *sandlib.FileClient) int {
		n, err := c.Read(fd, buf, offset)
		if err != nil {
			return sandlib.Status(err)
		}
		return n
	})
}

func Write(fd int, buf []byte, offset int64) int {
	return withClient(func(c *sandlib.FileClient) int {
		n, err := c.Write(fd, buf, offset)
		if err != nil {
			return sandlib.Status(err)
		}
		return n
	})
}

func AioRead(fd int, aio *sandlib.AioContext) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.AioRead(fd, aio))
	})
}

func AioWrite(fd int, aio *sandlib.AioContext) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.AioWrite(fd, aio))
	})
}

func Create(filename string, user sandlib.UserInfo, size uint64) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Create(filename, user, size))
	})
}

func Rename(user sandlib.UserInfo, oldPath, newPath string) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Rename(user, oldPath, newPath))
	})
}

func Extend(filename string, user sandlib.UserInfo, newSize uint64) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Extend(filename, user, newSize))
	})
}

// Extend4Qemu rejects non-positive sizes.
func Extend4Qemu(filename string, newSize int64) int {
	realname, owner, ok := UserFromFilename(filename)
	if !ok {
		return statusFailed
	}
	if !initialized() || newSize <= 0 {
		return statusFailed
	}
	return Extend(realname, sandlib.UserInfo{Owner: owner}, uint64(newSize))
}

func Unlink(filename string, user sandlib.UserInfo) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Unlink(filename, user, false))
	})
}

func DeleteForce(filename string, user sandlib.UserInfo) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Unlink(filename, user, true))
	})
}

func Mkdir(dirpath string, user sandlib.UserInfo) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Mkdir(dirpath, user))
	})
}

func Rmdir(dirpath string, user sandlib.UserInfo) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.Rmdir(dirpath, user))
	})
}

func ChangeOwner(filename string, newOwner string, user sandlib.UserInfo) int {
	return withClient(func(c *sandlib.FileClient) int {
		return sandlib.Status(c.ChangeOwner(filename, newOwner, user))
	})
}

// StatFile fills finfo on success.
func StatFile(filename string, user sandlib.UserInfo, finfo *sandlib.FileStatInfo) int {
	if finfo == nil {
		return -int(sandlib.CodeParamError)
	}
	return withClient(func(c *sandlib.FileClient) int {
		st, err := c.StatFile(filename, user)
		if err != nil {
			return sandlib.Status(err)
		}
		*finfo = *st
		return 0
	})
}

func StatFile4Qemu(filename string, finfo *sandlib.FileStatInfo) int {
	realname, owner, ok := UserFromFilename(filename)
	if !ok {
		return statusFailed
	}
	return StatFile(realname, sandlib.UserInfo{Owner: owner}, finfo)
}
