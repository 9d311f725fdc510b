package file

import (
	"io"
)

type Core interface {
	VerifyImageURL(fileID, expires, signature string) bool
	OpenImage(fileID string) (contentType string, rc io.ReadCloser, err error)
}
