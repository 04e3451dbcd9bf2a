package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/clip-keeper/models"
)

func TestContentChecksum_Deterministic(t *testing.T) {
	a := ContentChecksum("id-1", models.TypeText, "hello")
	b := ContentChecksum("id-1", models.TypeText, "hello")

	require.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestContentChecksum_SensitiveToEveryField(t *testing.T) {
	base := ContentChecksum("id-1", models.TypeText, "hello")

	assert.NotEqual(t, base, ContentChecksum("id-2", models.TypeText, "hello"))
	assert.NotEqual(t, base, ContentChecksum("id-1", models.TypeHTML, "hello"))
	assert.NotEqual(t, base, ContentChecksum("id-1", models.TypeText, "hello!"))
}

func TestFavoriteChecksum_DistinguishesFlagOnly(t *testing.T) {
	fav := FavoriteChecksum("id-1", models.TypeText, "hello", true)
	nofav := FavoriteChecksum("id-1", models.TypeText, "hello", false)

	assert.NotEqual(t, fav, nofav)
	// The content checksum ignores the flag entirely.
	assert.Equal(t,
		ContentChecksum("id-1", models.TypeText, "hello"),
		ContentChecksum("id-1", models.TypeText, "hello"),
	)
}

func TestOf_RecomputesStaleCachedChecksum(t *testing.T) {
	item := models.ClipboardItem{
		ID:           "id-1",
		Type:         models.TypeText,
		Value:        "current value",
		Checksum:     "stale-cached-checksum",
		LastModified: 42,
		Favorite:     true,
	}

	fp := Of(item)

	assert.Equal(t, ContentChecksum("id-1", models.TypeText, "current value"), fp.Checksum)
	assert.Equal(t, int64(42), fp.Timestamp)
	assert.True(t, fp.Favorite)
}

func TestOf_AttachmentUsesStoredByteChecksum(t *testing.T) {
	item := models.ClipboardItem{
		ID:       "img-1",
		Type:     models.TypeImage,
		Value:    "/home/a/pictures/shot.png",
		Checksum: "byte-level-sum",
	}

	fp := Of(item)

	// Paths are device-local; two devices holding the same bytes must
	// produce the same fingerprint.
	assert.Equal(t, "byte-level-sum", fp.Checksum)
}

func TestDataChecksum_OrderIndependent(t *testing.T) {
	a := models.Fingerprint{ID: "a", Checksum: "ca"}
	b := models.Fingerprint{ID: "b", Checksum: "cb"}

	require.Equal(t,
		DataChecksum([]models.Fingerprint{a, b}),
		DataChecksum([]models.Fingerprint{b, a}),
	)
	assert.NotEqual(t,
		DataChecksum([]models.Fingerprint{a}),
		DataChecksum([]models.Fingerprint{a, b}),
	)
}
