package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jackc/pgx/v5"
)

var (
	ErrAvatarNotFound = errors.New("avatar not found")
	ErrUserNotFound   = errors.New("user not found")
)

type Avatar struct {
	Data        []byte
	ContentType string
}

// AvatarStore keeps one avatar image per user.
type AvatarStore interface {
	Put(ctx context.Context, userID string, avatar Avatar) error
	Get(ctx context.Context, userID string) (Avatar, error)
}

// PgAvatarStore keeps the image bytes in users.avatar.
type PgAvatarStore struct {
	db dbQuerier
}

func NewPgAvatarStore(db dbQuerier) *PgAvatarStore {
	return &PgAvatarStore{db: db}
}

func (s *PgAvatarStore) Put(ctx context.Context, userID string, avatar Avatar) error {
	tag, err := s.db.Exec(
		ctx,
		`UPDATE users SET avatar = $2, avatar_content_type = $3, avatar_object_key = NULL WHERE user_id = $1`,
		userID,
		avatar.Data,
		avatar.ContentType,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PgAvatarStore) Get(ctx context.Context, userID string) (Avatar, error) {
	var (
		data        []byte
		contentType *string
	)
	err := s.db.QueryRow(
		ctx,
		`SELECT avatar, avatar_content_type FROM users WHERE user_id = $1`,
		userID,
	).Scan(&data, &contentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return Avatar{}, ErrAvatarNotFound
	}
	if err != nil {
		return Avatar{}, err
	}
	if len(data) == 0 {
		return Avatar{}, ErrAvatarNotFound
	}
	avatar := Avatar{Data: data, ContentType: "image/jpeg"}
	if contentType != nil && *contentType != "" {
		avatar.ContentType = *contentType
	}
	return avatar, nil
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3AvatarStore writes images to a bucket and records the object key on the
// user row.
type S3AvatarStore struct {
	client s3API
	bucket string
	db     dbQuerier
}

func NewS3AvatarStore(ctx context.Context, bucket, region string, db dbQuerier) (*S3AvatarStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3AvatarStore(s3.NewFromConfig(awsCfg), bucket, db), nil
}

func newS3AvatarStore(client s3API, bucket string, db dbQuerier) *S3AvatarStore {
	return &S3AvatarStore{client: client, bucket: bucket, db: db}
}

func avatarObjectKey(userID string) string {
	return "avatars/" + userID
}

func (s *S3AvatarStore) Put(ctx context.Context, userID string, avatar Avatar) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	key := avatarObjectKey(userID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(avatar.Data),
		ContentType:   aws.String(avatar.ContentType),
		ContentLength: aws.Int64(int64(len(avatar.Data))),
	})
	if err != nil {
		return fmt.Errorf("put avatar object: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		`UPDATE users SET avatar = NULL, avatar_content_type = $2, avatar_object_key = $3 WHERE user_id = $1`,
		userID,
		avatar.ContentType,
		key,
	)
	return err
}

func (s *S3AvatarStore) Get(ctx context.Context, userID string) (Avatar, error) {
	var key *string
	err := s.db.QueryRow(ctx, `SELECT avatar_object_key FROM users WHERE user_id = $1`, userID).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (key == nil || *key == "")) {
		return Avatar{}, ErrAvatarNotFound
	}
	if err != nil {
		return Avatar{}, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(*key),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return Avatar{}, ErrAvatarNotFound
	}
	if err != nil {
		return Avatar{}, fmt.Errorf("get avatar object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Avatar{}, fmt.Errorf("read avatar object: %w", err)
	}
	avatar := Avatar{Data: data, ContentType: "image/jpeg"}
	if out.ContentType != nil && *out.ContentType != "" {
		avatar.ContentType = *out.ContentType
	}
	return avatar, nil
}
