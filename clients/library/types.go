package sandlib

import (
	fs "github.com/AnishMulay/sandblock/internal/file_session"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

// IOAlignedBlockSize is the unit every read and write offset and length must be a multiple of.
const IOAlignedBlockSize = 4096

type UserInfo = ms.UserInfo

type FileType = ms.FileType

const (
	TypeDirectory = ms.TypeDirectory
	TypePageFile  = ms.TypePageFile
)

type AioContext = fs.AioContext

type AioOp = fs.AioOp

const (
	AioOpRead  = fs.AioOpRead
	AioOpWrite = fs.AioOpWrite
)

// FileStatInfo is what StatFile and Listdir report. FileName is the last path
// element.
type FileStatInfo struct {
	ID       uint64
	ParentID uint64
	FileType FileType
	Length   uint64
	Ctime    uint64
	Owner    string
	FileName string
}

func statFromInfo(fi *ms.FileInfo) FileStatInfo {
	return FileStatInfo{
		ID:       fi.ID,
		ParentID: fi.ParentID,
		FileType: fi.Type,
		Length:   fi.Length,
		Ctime:    fi.Ctime,
		Owner:    fi.Owner,
		FileName: fi.Name,
	}
}

// CheckAligned reports whether offset and length are both multiples of IOAlignedBlockSize.
func CheckAligned(offset int64, length int64) bool {
	return offset%IOAlignedBlockSize == 0 && length%IOAlignedBlockSize == 0
}
