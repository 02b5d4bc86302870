package libsand

import (
	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

// NameMaxSize is the width of the owner and filename fields of a FileStatRecord.
const NameMaxSize = 256

// FileStatRecord is a directory entry with fixed-width, zero-padded names.
type FileStatRecord struct {
	ID       uint64
	ParentID uint64
	FileType sandlib.FileType
	Length   uint64
	Ctime    uint64
	Owner    [NameMaxSize]byte
	FileName [NameMaxSize]byte
}

func (r *FileStatRecord) OwnerString() string    { return NameString(r.Owner[:]) }
func (r *FileStatRecord) FileNameString() string { return NameString(r.FileName[:]) }

// NameString reads a fixed-width name field up to its first zero byte, or
// the whole field when it has none.
func NameString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// copyName leaves room for a terminating zero byte.
func copyName(dst *[NameMaxSize]byte, s string) {
	*dst = [NameMaxSize]byte{}
	copy(dst[:NameMaxSize-1], s)
}

// RecordFromStat truncates names that do not fit a record.
func RecordFromStat(st sandlib.FileStatInfo) FileStatRecord {
	r := FileStatRecord{
		ID:       st.ID,
		ParentID: st.ParentID,
		FileType: st.FileType,
		Length:   st.Length,
		Ctime:    st.Ctime,
	}
	copyName(&r.Owner, st.Owner)
	copyName(&r.FileName, st.FileName)
	return r
}

// DirInfo is a directory listing handle. FileStat is empty until Listdir.
type DirInfo struct {
	DirPath  string
	User     sandlib.UserInfo
	FileStat []FileStatRecord
}

// OpenDir returns nil when the client is not initialized.
func OpenDir(dirpath string, user sandlib.UserInfo) *DirInfo {
	if !initialized() {
		return nil
	}
	return &DirInfo{DirPath: dirpath, User: user}
}

// Listdir fills dir.FileStat with a fresh copy of the directory entries.
func Listdir(dir *DirInfo) int {
	if dir == nil {
		return -int(sandlib.CodeParamError)
	}
	return withClient(func(c *sandlib.FileClient) int {
		entries, err := c.Listdir(dir.DirPath, dir.User)
		if err != nil {
			return sandlib.Status(err)
		}
		records := make([]FileStatRecord, len(entries))
		for i, e := range entries {
			records[i] = RecordFromStat(e)
		}
		dir.FileStat = records
		return 0
	})
}

func CloseDir(dir *DirInfo) {
	if dir == nil {
		return
	}
	dir.FileStat = nil
}
