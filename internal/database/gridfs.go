package repository

import (
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxImageSize caps message image uploads (5 MB).
const MaxImageSize = 5 << 20

// ImageMetadata is stored alongside each GridFS image so downloads can be
// scoped back to their conversation.
type ImageMetadata struct {
	ConversationID string `bson:"conversation_id"`
	Uploader       string `bson:"uploader"`
	MIMEType       string `bson:"mime_type"`
}

// UploadMessageImage pushes image bytes into GridFS under a path scoped
// to the conversation and returns the file id used to build the durable
// download URL.
func (m *MongoDB) UploadMessageImage(conversationID, filename string, reader io.Reader, meta ImageMetadata) (string, int64, error) {
	connection, err := m.connect()
	if err != nil {
		return "", 0, err
	}
	defer m.disconnect(connection)

	bucket, err := gridfs.NewBucket(connection.Database(m.database))
	if err != nil {
		return "", 0, fmt.Errorf("gridfs bucket: %w", err)
	}

	meta.ConversationID = conversationID
	uploadOpts := options.GridFSUpload().SetMetadata(meta)

	uploadStream, err := bucket.OpenUploadStream(conversationID+"/"+filename, uploadOpts)
	if err != nil {
		return "", 0, fmt.Errorf("gridfs open upload: %w", err)
	}

	size, err := io.Copy(uploadStream, io.LimitReader(reader, MaxImageSize+1))
	if err != nil {
		uploadStream.Close()
		return "", 0, fmt.Errorf("gridfs copy: %w", err)
	}
	if size > MaxImageSize {
		uploadStream.Close()
		return "", 0, fmt.Errorf("image exceeds %d bytes", int64(MaxImageSize))
	}

	if err := uploadStream.Close(); err != nil {
		return "", 0, fmt.Errorf("gridfs close upload: %w", err)
	}

	fileID := uploadStream.FileID.(primitive.ObjectID)
	return fileID.Hex(), size, nil
}

// imageReadCloser ties the download stream's lifetime to the MongoDB
// connection backing it.
type imageReadCloser struct {
	stream     *gridfs.DownloadStream
	disconnect func()
}

func (r *imageReadCloser) Read(p []byte) (int, error) {
	return r.stream.Read(p)
}

func (r *imageReadCloser) Close() error {
	err := r.stream.Close()
	r.disconnect()
	return err
}

// DownloadMessageImage streams an image back by its hex file id. The
// caller must close the reader to release the connection.
func (m *MongoDB) DownloadMessageImage(fileID string) (ImageMetadata, io.ReadCloser, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return ImageMetadata{}, nil, fmt.Errorf("invalid file id: %w", err)
	}

	connection, err := m.connect()
	if err != nil {
		return ImageMetadata{}, nil, err
	}

	bucket, err := gridfs.NewBucket(connection.Database(m.database))
	if err != nil {
		m.disconnect(connection)
		return ImageMetadata{}, nil, fmt.Errorf("gridfs bucket: %w", err)
	}

	stream, err := bucket.OpenDownloadStream(oid)
	if err != nil {
		m.disconnect(connection)
		return ImageMetadata{}, nil, fmt.Errorf("gridfs open download: %w", err)
	}

	var meta ImageMetadata
	if raw := stream.GetFile().Metadata; len(raw) > 0 {
		if err := bson.Unmarshal(raw, &meta); err != nil {
			m.log.Error("failed to unmarshal gridfs metadata", "error", err.Error())
		}
	}

	reader := &imageReadCloser{
		stream:     stream,
		disconnect: func() { m.disconnect(connection) },
	}

	return meta, reader, nil
}
