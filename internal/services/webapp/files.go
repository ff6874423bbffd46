package webapp

import (
	"fmt"
	"net/http"
	"net/url"
)

// serveDownload 以附件形式返回内存中的文件内容。
func serveDownload(w http.ResponseWriter, name, contentType string, b []byte) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	writeBody(w, contentType, b)
}
