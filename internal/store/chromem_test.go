package store

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"student-rag/internal/embeddings"
	"student-rag/internal/logger"
)

// bagOfWords embeds text as hashed word counts. Deterministic, so identical
// texts produce identical vectors.
type bagOfWords struct {
	dims  int
	calls int
}

func (b *bagOfWords) Embed(_ context.Context, text string) (embeddings.Vector, error) {
	b.calls++
	vec := make(embeddings.Vector, b.dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%b.dims]++
	}
	return vec, nil
}

var profiles = []Document{
	{ID: "students1", Content: "Hi my name is Brian Light and I love playing chess after school"},
	{ID: "students2", Content: "Hi my name is Ava Hatestring and I enjoy painting landscapes in watercolor"},
	{ID: "students3", Content: "Hi my name is Arya Arupathy and I run cross country every autumn"},
	{ID: "students4", Content: "Hi my name is Demetrius Obole and I build robots for the science fair"},
}

func newTestCollection(t *testing.T) (*ChromemCollection, *bagOfWords) {
	t.Helper()
	emb := &bagOfWords{dims: 4096}
	col, err := NewClient(logger.Discard()).CreateCollection("Student_Profiles", emb)
	require.NoError(t, err)
	return col, emb
}

func TestCreateCollection(t *testing.T) {
	client := NewClient(logger.Discard())
	emb := &bagOfWords{dims: 8}

	col, err := client.CreateCollection("Student_Profiles", emb)
	require.NoError(t, err)
	assert.Equal(t, "Student_Profiles", col.Name())
	assert.Equal(t, 0, col.Count())

	_, err = client.CreateCollection("Student_Profiles", emb)
	assert.ErrorIs(t, err, ErrCollectionExists)

	_, err = client.CreateCollection("", emb)
	assert.Error(t, err)

	_, err = client.CreateCollection("other", nil)
	assert.Error(t, err)
}

func TestDeleteCollection(t *testing.T) {
	client := NewClient(logger.Discard())
	emb := &bagOfWords{dims: 8}

	_, err := client.CreateCollection("tmp", emb)
	require.NoError(t, err)
	require.NoError(t, client.DeleteCollection("tmp"))

	assert.ErrorIs(t, client.DeleteCollection("tmp"), ErrCollectionNotFound)

	// Name is free again.
	_, err = client.CreateCollection("tmp", emb)
	assert.NoError(t, err)
}

func TestAddCountsEntries(t *testing.T) {
	ctx := context.Background()
	col, emb := newTestCollection(t)

	require.NoError(t, col.Add(ctx, profiles[:3]))
	require.NoError(t, col.Add(ctx, profiles[3:]))

	assert.Equal(t, len(profiles), col.Count())
	assert.Equal(t, len(profiles), emb.calls)
	for _, p := range profiles {
		ok, err := col.Has(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, ok, p.ID)
	}
	ok, err := col.Has(ctx, "students5")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddRejectsDuplicates(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		first []Document
		batch []Document
		count int
	}{
		{
			name:  "duplicate inside batch",
			batch: []Document{profiles[0], profiles[0]},
			count: 0,
		},
		{
			name:  "id already stored",
			first: profiles[:1],
			batch: []Document{profiles[1], profiles[0]},
			count: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, _ := newTestCollection(t)
			if tt.first != nil {
				require.NoError(t, col.Add(ctx, tt.first))
			}
			err := col.Add(ctx, tt.batch)
			assert.ErrorIs(t, err, ErrDuplicateID)
			assert.Equal(t, tt.count, col.Count())
		})
	}
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	col, _ := newTestCollection(t)

	assert.ErrorIs(t, col.Add(ctx, nil), ErrEmptyDocuments)
	assert.Error(t, col.Add(ctx, []Document{{Content: "no id"}}))
}

func TestAddPropagatesEmbedderError(t *testing.T) {
	ctx := context.Background()
	emb := new(embeddings.MockEmbedder)
	emb.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("401 invalid api key"))

	col, err := NewClient(logger.Discard()).CreateCollection("c", emb)
	require.NoError(t, err)

	err = col.Add(ctx, profiles[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, 0, col.Count())

	// A failed add leaves the id free.
	ok, _ := col.Has(ctx, profiles[0].ID)
	assert.False(t, ok)
}

// failingOn embeds like bagOfWords but fails for one exact text.
type failingOn struct {
	bagOfWords
	text string
}

func (f *failingOn) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	if text == f.text {
		return nil, errors.New("embedding service unavailable")
	}
	return f.bagOfWords.Embed(ctx, text)
}

func TestAddPartialFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()

	// chromem picks the insertion order, so some documents may be stored
	// before the failing one. Repeat to cover different orders.
	for i := 0; i < 20; i++ {
		emb := &failingOn{bagOfWords: bagOfWords{dims: 4096}, text: profiles[0].Content}
		col, err := NewClient(logger.Discard()).CreateCollection("Student_Profiles", emb)
		require.NoError(t, err)

		err = col.Add(ctx, profiles[:3])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding service unavailable")
		assert.Equal(t, 0, col.Count())
		for _, p := range profiles[:3] {
			ok, err := col.Has(ctx, p.ID)
			require.NoError(t, err)
			assert.False(t, ok, p.ID)
		}

		// The ids that did embed can be added again without a silent overwrite.
		require.NoError(t, col.Add(ctx, profiles[1:3]))
		assert.Equal(t, 2, col.Count())
		assert.ErrorIs(t, col.Add(ctx, profiles[1:2]), ErrDuplicateID)
	}
}

func TestQueryIdenticalTextRanksFirst(t *testing.T) {
	ctx := context.Background()
	col, _ := newTestCollection(t)
	require.NoError(t, col.Add(ctx, profiles))

	for _, p := range profiles {
		t.Run(p.ID, func(t *testing.T) {
			results, err := col.Query(ctx, []string{p.Content}, 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			require.Len(t, results[0], 1)

			top := results[0][0]
			assert.Equal(t, p.ID, top.ID)
			assert.Equal(t, p.Content, top.Content)
			assert.InDelta(t, 0, top.Distance, 1e-4)
			assert.InDelta(t, 1, top.Similarity, 1e-4)
		})
	}
}

func TestQueryShape(t *testing.T) {
	ctx := context.Background()
	col, _ := newTestCollection(t)
	require.NoError(t, col.Add(ctx, profiles))

	results, err := col.Query(ctx, []string{"chess", "robots science"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Len(t, r, 1)
	}
	assert.Equal(t, "students1", results[0][0].ID)
	assert.Equal(t, "students4", results[1][0].ID)
}

func TestQueryOrderedByDistance(t *testing.T) {
	ctx := context.Background()
	col, _ := newTestCollection(t)
	require.NoError(t, col.Add(ctx, profiles))

	// n larger than the collection is capped.
	results, err := col.Query(ctx, []string{"painting watercolor landscapes"}, 10)
	require.NoError(t, err)
	require.Len(t, results[0], len(profiles))
	assert.Equal(t, "students2", results[0][0].ID)
	for i := 1; i < len(results[0]); i++ {
		assert.LessOrEqual(t, results[0][i-1].Distance, results[0][i].Distance)
	}
}

func TestQueryMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	col, _ := newTestCollection(t)
	doc := Document{
		ID:       "students1",
		Content:  profiles[0].Content,
		Metadata: map[string]string{MetaName: "Brian Light", MetaSource: "Brian_Light.md"},
	}
	require.NoError(t, col.Add(ctx, []Document{doc}))

	results, err := col.Query(ctx, []string{"chess"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Brian Light", results[0][0].Metadata[MetaName])
	assert.Equal(t, "Brian_Light.md", results[0][0].Metadata[MetaSource])
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()
	col, _ := newTestCollection(t)

	empty, err := col.Query(ctx, []string{"anything"}, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]Result{{}}, empty)

	_, err = col.Query(ctx, []string{"x"}, 0)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = col.Query(ctx, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = col.Query(ctx, []string{"   "}, 1)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
