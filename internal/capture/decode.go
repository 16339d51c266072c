package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrDecode is returned for uploads that are not a decodable image.
var ErrDecode = errors.New("cannot decode image")

// DecodeImage decodes an encoded image (JPEG, PNG, ...) into a BGR frame.
// The caller is responsible for closing the returned Mat.
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty body", ErrDecode)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrDecode
	}
	return mat, nil
}
