package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/export"
	clientmodels "github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/common"
	sc "github.com/dmitrijs2005/docsync/internal/server/config"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Package-level seams over the AWS SDK so tests run without object storage.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ShareService publishes documents to object storage and hands out
// time-limited links to them.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
	newToken    func() string
}

func NewShareService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *ShareService {
	return &ShareService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		now:         time.Now,
		newToken:    uuid.NewString,
	}
}

// StorageKey is where a share's Markdown copy lives in the bucket.
func StorageKey(token string) string {
	return fmt.Sprintf("shares/%s.md", token)
}

func (s *ShareService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Share uploads the document as Markdown under a fresh token and returns a
// presigned GET URL valid for ShareLinkTTL. Sharing again replaces the
// previous token.
func (s *ShareService) Share(ctx context.Context, userID, documentID string) (*models.Share, error) {
	if err := validateID(documentID); err != nil {
		return nil, err
	}
	doc, err := s.repomanager.Documents(s.db).Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := export.Markdown(&body, &clientmodels.Document{
		Name:      doc.Name,
		Content:   doc.Content,
		Category:  doc.Category,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	share := &models.Share{DocumentID: doc.ID, Token: s.newToken()}
	share.StorageKey = StorageKey(share.Token)
	bucket := s.config.S3Bucket

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &share.StorageKey,
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	}); err != nil {
		return nil, fmt.Errorf("%w: upload share: %v", common.ErrUnavailable, err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &share.StorageKey,
	}, s3.WithPresignExpires(s.config.ShareLinkTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: presign share: %v", common.ErrUnavailable, err)
	}
	share.URL = req.URL
	share.ExpiresAt = s.now().Add(s.config.ShareLinkTTL).UTC()

	if err := s.repomanager.Shares(s.db).Upsert(ctx, userID, share); err != nil {
		return nil, err
	}
	return share, nil
}
