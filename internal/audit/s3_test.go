package audit

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Shipper_Ship(t *testing.T) {
	putter := &fakePutter{}
	shipper := NewS3ShipperWithClient(putter, "activity-archive", "/tenantry/")

	entry := &LogEntry{ID: "a1", Type: TypeMemberRemoved, UserID: "user-1"}
	entry.Timestamp = entry.Timestamp.AddDate(2025, 11, 30) // 2026-12-31

	require.NoError(t, shipper.Ship(context.Background(), entry))
	require.Len(t, putter.inputs, 1)

	in := putter.inputs[0]
	assert.Equal(t, "activity-archive", *in.Bucket)
	assert.Regexp(t, `^tenantry/2026/12/31/20261231T000000\.000000000Z-a1\.json$`, *in.Key)
	assert.Equal(t, "application/json", *in.ContentType)
	assert.Contains(t, putter.bodies[0], `"type":"org.member.removed"`)
}

func TestS3Shipper_NoPrefix(t *testing.T) {
	shipper := NewS3ShipperWithClient(&fakePutter{}, "b", "")
	entry := &LogEntry{ID: "x"}
	entry.Timestamp = entry.Timestamp.AddDate(2025, 0, 0)
	assert.Equal(t, "2026/01/01/20260101T000000.000000000Z-x.json", shipper.objectKey(entry))
}

func TestS3Shipper_UploadError(t *testing.T) {
	shipper := NewS3ShipperWithClient(&fakePutter{err: errors.New("access denied")}, "b", "p")
	err := shipper.Ship(context.Background(), &LogEntry{ID: "x"})
	assert.ErrorContains(t, err, "access denied")
}
