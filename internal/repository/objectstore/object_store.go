package objectstore

import (
	"io"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/schollz/progressbar/v3"
)

// NewS3ObjectRepository creates a new S3 object repository
func NewS3ObjectRepository(client *s3.Client, bucketName string) S3ObjectRepository {
	return S3ObjectRepository{
		client:     client,
		bucketName: bucketName,
	}
}

// NewGCSObjectRepository creates a new GCS object repository
func NewGCSObjectRepository(client *storage.Client, bucketName string) GCSObjectRepository {
	return GCSObjectRepository{
		client:     client,
		bucketName: bucketName,
	}
}

// readerSize reports how many bytes remain in reader, or -1 if it cannot seek.
func readerSize(reader io.Reader) int64 {
	seeker, ok := reader.(io.Seeker)
	if !ok {
		return -1
	}
	current, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}
	if _, err := seeker.Seek(current, io.SeekStart); err != nil {
		return -1
	}
	return end - current
}

// withUploadProgress wraps reader in a progress bar unless quiet.
func withUploadProgress(reader io.Reader, size int64, quiet bool) io.Reader {
	if quiet {
		return reader
	}
	bar := progressbar.DefaultBytes(size, "uploading")
	pbReader := progressbar.NewReader(reader, bar)
	return &pbReader
}

type progressReaderCloser struct {
	io.Reader
	io.Closer
}

// withDownloadProgress wraps body in a progress bar unless quiet.
func withDownloadProgress(body io.ReadCloser, size int64, quiet bool) io.ReadCloser {
	if quiet {
		return body
	}
	bar := progressbar.DefaultBytes(size, "downloading")
	proxyReader := progressbar.NewReader(body, bar)
	return &progressReaderCloser{Reader: &proxyReader, Closer: body}
}
