package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveWritesUnderBusinessTree(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "/uploads/", nil)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	ref, err := s.Save(context.Background(), Receipt{BusinessID: 3, CustomerID: 9, OrderID: 41, Phone: "9477@c"}, []byte("jpeg"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, "/uploads/business_3/payments/9/41/1700000000000_9477c_"), ref)
	assert.True(t, strings.HasSuffix(ref, ".jpg"))

	data, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(ref, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestSaveRejectsEmptyMedia(t *testing.T) {
	s := NewStore(t.TempDir(), "", nil)
	_, err := s.Save(context.Background(), Receipt{BusinessID: 1}, nil)
	assert.ErrorIs(t, err, ErrEmptyMedia)
}

func TestLogicalPathUnknownIDs(t *testing.T) {
	s := NewStore("", "", nil)
	p := s.LogicalPath(Receipt{BusinessID: 2, Ext: ".PNG"})
	assert.True(t, strings.HasPrefix(p, "business_2/payments/unknown_customer/unknown_order/"))
	assert.True(t, strings.HasSuffix(p, ".png"))
}
