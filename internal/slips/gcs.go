package slips

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	Bucket          string
	CredentialsFile string
}

// GCSStore keeps slips in a Cloud Storage bucket under slips/<booking id>/
// and payment QR images under qr-codes/.
type GCSStore struct {
	Validator
	client *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	const op = "slips.NewGCSStore"

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &GCSStore{
		Validator: NewValidator(),
		client:    client,
		bucket:    cfg.Bucket,
	}, nil
}

// Upload writes the slip and returns its object path.
func (s *GCSStore) Upload(ctx context.Context, bookingID uuid.UUID, contentType string, data []byte) (string, error) {
	const op = "slips.GCSStore.Upload"

	name := ObjectName(bookingID, contentType)
	if err := s.write(ctx, name, contentType, data, map[string]string{"booking_id": bookingID.String()}); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return name, nil
}

// UploadQR stores a payment QR image under qr-codes/ and returns its path.
func (s *GCSStore) UploadQR(ctx context.Context, contentType string, data []byte) (string, error) {
	const op = "slips.GCSStore.UploadQR"

	name := QRObjectName(contentType)
	if err := s.write(ctx, name, contentType, data, nil); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return name, nil
}

func (s *GCSStore) write(ctx context.Context, name, contentType string, data []byte, meta map[string]string) error {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = meta

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func extension(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return ".bin"
}

func ObjectName(bookingID uuid.UUID, contentType string) string {
	return path.Join("slips", bookingID.String(), uuid.NewString()+extension(contentType))
}

func QRObjectName(contentType string) string {
	return path.Join("qr-codes", uuid.NewString()+extension(contentType))
}
