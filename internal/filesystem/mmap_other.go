//go:build !unix

package filesystem

import (
	"errors"
	"os"
)

func mapFile(_ *os.File, _ int) ([]byte, func() error, error) {
	return nil, nil, errors.New("memory mapping not supported on this platform")
}
