package archive

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

type progressTracker struct{}

func (progressTracker) TrackProgress(_ string, currentSize, totalSize int64, stream io.ReadCloser) io.ReadCloser {
	bar := pb.Full.Start64(totalSize)
	bar.SetCurrent(currentSize)
	// Reader.Close finishes the bar and closes the stream
	return bar.NewProxyReader(stream)
}
