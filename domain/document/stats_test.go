package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	mk := func(tags, cats []string) Document {
		d, err := NewDocument("text", NewMetadata(WithTags(tags...), WithCategories(cats...)))
		require.NoError(t, err)
		return d
	}
	docs := []Document{
		mk([]string{"go", "db"}, []string{"eng"}),
		mk([]string{"go", "go"}, nil),
		mk(nil, []string{"ops", "eng"}),
	}

	s := ComputeStats(docs)

	assert.Equal(t, 3, s.Total())
	assert.Equal(t, []string{"db", "go"}, s.UniqueTags())
	assert.Equal(t, []string{"eng", "ops"}, s.UniqueCategories())
	assert.Equal(t, map[string]int{"go": 2, "db": 1}, s.DocumentsPerTag())
	assert.Equal(t, map[string]int{"eng": 2, "ops": 1}, s.DocumentsPerCategory())
}

func TestComputeStats_Empty(t *testing.T) {
	s := ComputeStats(nil)
	assert.Equal(t, 0, s.Total())
	assert.Empty(t, s.UniqueTags())
}
