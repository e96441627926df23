package incident

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxSourceBytes：远端数据集大小上限
const maxSourceBytes = 512 << 20

// IsRemote：以 http:// 或 https:// 开头的数据源视为远端
func IsRemote(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ReadSource：读取数据源原始字节，本地路径直接读文件，远端走 HTTP GET
// 约束：client 为 nil 时使用 http.DefaultClient；非 200 状态视为失败，不做重试
func ReadSource(ctx context.Context, src string, client *http.Client) ([]byte, error) {
	if src == "" {
		return nil, &LoadError{Stage: "source", Err: fmt.Errorf("empty source")}
	}
	if !IsRemote(src) {
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, &LoadError{Stage: "source", Err: err}
		}
		return b, nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, &LoadError{Stage: "source", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &LoadError{Stage: "fetch", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Stage: "fetch", Err: fmt.Errorf("bad status %d", resp.StatusCode)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, &LoadError{Stage: "fetch", Err: err}
	}
	return b, nil
}

// LoadFile：读取并解析本地 CSV 文件
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Stage: "source", Err: err}
	}
	defer f.Close()
	return Load(f)
}

// Open：读取任意数据源并解析
func Open(ctx context.Context, src string, client *http.Client) ([]Record, error) {
	b, err := ReadSource(ctx, src, client)
	if err != nil {
		return nil, err
	}
	return Load(bytes.NewReader(b))
}
