package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

type toolSet struct {
	client *sandlib.FileClient
	cfg    *MCPConfig
}

func (ts *toolSet) user() sandlib.UserInfo {
	return sandlib.UserInfo{Owner: ts.cfg.User, Password: ts.cfg.Password}
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%v (code %s)", err, sandlib.CodeOf(err)))
}

func addTools(s *server.MCPServer, ts *toolSet) {
	s.AddTool(mcp.NewTool("list_dir",
		mcp.WithDescription("List a sandblock directory"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory path")),
	), ts.handleListDir)

	s.AddTool(mcp.NewTool("stat_file",
		mcp.WithDescription("Show metadata of a sandblock file or directory"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
	), ts.handleStatFile)

	s.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a fixed-size file; size must be a multiple of 4096"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
		mcp.WithNumber("size", mcp.Required(), mcp.Description("Size in bytes")),
	), ts.handleCreateFile)

	s.AddTool(mcp.NewTool("mkdir",
		mcp.WithDescription("Create a directory"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory path")),
	), ts.handleMkdir)

	s.AddTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
		mcp.WithBoolean("force", mcp.Description("Delete even if the file is open")),
	), ts.handleDeleteFile)

	s.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Write text into a file at an aligned offset; the text is zero padded to 4096 bytes"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to write")),
		mcp.WithNumber("offset", mcp.Description("Byte offset, multiple of 4096")),
	), ts.handleWriteFile)

	s.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read text from a file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
		mcp.WithNumber("offset", mcp.Description("Byte offset, multiple of 4096")),
		mcp.WithNumber("length", mcp.Description("Bytes to read, multiple of 4096; defaults to 4096")),
	), ts.handleReadFile)
}

func (ts *toolSet) handleListDir(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := ts.client.Listdir(path, ts.user())
	if err != nil {
		return toolError(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d entries):\n", path, len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s %s %d bytes owner=%s\n", e.FileName, e.FileType, e.Length, e.Owner)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (ts *toolSet) handleStatFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := ts.client.StatFile(path, ts.user())
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: id=%d parent=%d type=%s length=%d ctime=%d",
		path, st.ID, st.ParentID, st.FileType, st.Length, st.Ctime)), nil
}

func (ts *toolSet) handleCreateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	size, err := request.RequireFloat("size")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if size <= 0 {
		return mcp.NewToolResultError("size must be positive"), nil
	}

	if err := ts.client.Create(path, ts.user(), uint64(size)); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created %s (%d bytes)", path, uint64(size))), nil
}

func (ts *toolSet) handleMkdir(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ts.client.Mkdir(path, ts.user()); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created directory %s", path)), nil
}

func (ts *toolSet) handleDeleteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ts.client.Unlink(path, ts.user(), request.GetBool("force", false)); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %s", path)), nil
}

func (ts *toolSet) handleWriteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	offset := int64(request.GetFloat("offset", 0))

	data := []byte(content)
	if rem := len(data) % sandlib.IOAlignedBlockSize; rem != 0 || len(data) == 0 {
		data = append(data, make([]byte, sandlib.IOAlignedBlockSize-rem)...)
	}

	fd, err := ts.client.Open(path, ts.user())
	if err != nil {
		return toolError(err), nil
	}
	defer ts.client.Close(fd)

	n, err := ts.client.Write(fd, data, offset)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s at offset %d", n, path, offset)), nil
}

func (ts *toolSet) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	offset := int64(request.GetFloat("offset", 0))
	length := int(request.GetFloat("length", sandlib.IOAlignedBlockSize))
	if length <= 0 || length > ts.cfg.MaxReadBytes {
		return mcp.NewToolResultError(fmt.Sprintf("length must be between 1 and %d", ts.cfg.MaxReadBytes)), nil
	}

	fd, err := ts.client.Open(path, ts.user())
	if err != nil {
		return toolError(err), nil
	}
	defer ts.client.Close(fd)

	buf := make([]byte, length)
	if _, err := ts.client.Read(fd, buf, offset); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(strings.TrimRight(string(buf), "\x00")), nil
}
