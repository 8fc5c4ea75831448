package config

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ValidateSurfacesPath checks a SurfacesPath directive's value at
// config-validate time. A local path is accepted unconditionally (the
// directory is created lazily when surfaces are written); an s3://
// URI is probed with a HeadBucket call so a typo'd or inaccessible
// bucket surfaces as a configuration fault instead of failing deep
// into a run.
func ValidateSurfacesPath(path string) error {
	if path == "" {
		return nil
	}
	if !strings.HasPrefix(path, "s3://") {
		return nil
	}
	bucket, _ := splitS3Path(path)
	if bucket == "" {
		return fmt.Errorf("config: SurfacesPath %q is missing a bucket name", path)
	}

	sess, err := session.NewSession()
	if err != nil {
		return fmt.Errorf("config: SurfacesPath could not start an AWS session: %w", err)
	}
	svc := s3.New(sess)
	if _, err := svc.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("config: SurfacesPath bucket %q is not reachable: %w", bucket, err)
	}
	return nil
}

func splitS3Path(path string) (bucket, key string) {
	rest := strings.TrimPrefix(path, "s3://")
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		return rest[:slash], rest[slash+1:]
	}
	return rest, ""
}
