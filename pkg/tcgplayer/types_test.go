package tcgplayer_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

type category struct {
	CategoryID int    `json:"categoryId"`
	Name       string `json:"name"`
}

func TestResponse_Decode(t *testing.T) {
	t.Parallel()

	resp := &tcgplayer.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"categoryId":1,"name":"Magic"}`),
	}

	var got category

	require.NoError(t, resp.Decode(&got))
	assert.Equal(t, 1, got.CategoryID)
	assert.Equal(t, "Magic", got.Name)
}

func TestResponse_DecodeEmptyBody(t *testing.T) {
	t.Parallel()

	resp := &tcgplayer.Response{StatusCode: http.StatusNoContent}

	var got category

	err := resp.Decode(&got)
	require.Error(t, err)
	assert.ErrorIs(t, err, tcgplayer.ErrInvalidResponse)
}

func TestResponse_DecodeEnvelope(t *testing.T) {
	t.Parallel()

	resp := &tcgplayer.Response{
		StatusCode: http.StatusOK,
		Body: []byte(`{
			"success": true,
			"errors": [],
			"results": [
				{"categoryId": 1, "name": "Magic"},
				{"categoryId": 2, "name": "YuGiOh"}
			],
			"totalItems": 2
		}`),
	}

	envelope, err := resp.DecodeEnvelope()
	require.NoError(t, err)
	assert.True(t, envelope.Success)
	assert.Empty(t, envelope.Errors)
	assert.Equal(t, 2, envelope.TotalItems)

	categories, err := tcgplayer.DecodeResults[category](envelope)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Magic", categories[0].Name)
	assert.Equal(t, 2, categories[1].CategoryID)
}

func TestResponse_DecodeEnvelopeWithErrors(t *testing.T) {
	t.Parallel()

	resp := &tcgplayer.Response{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"success":false,"errors":["categoryId 0 is invalid"],"results":[]}`),
	}

	envelope, err := resp.DecodeEnvelope()
	require.NoError(t, err)
	assert.False(t, envelope.Success)
	assert.Equal(t, []string{"categoryId 0 is invalid"}, envelope.Errors)
}

func TestDecodeResults(t *testing.T) {
	t.Parallel()

	// Nil envelope and empty results decode to nothing.
	got, err := tcgplayer.DecodeResults[category](nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = tcgplayer.DecodeResults[category](&tcgplayer.Envelope{})
	require.NoError(t, err)
	assert.Nil(t, got)

	// Results that are not an array fail to decode.
	_, err = tcgplayer.DecodeResults[category](&tcgplayer.Envelope{
		Results: []byte(`{"categoryId":1}`),
	})
	require.Error(t, err)
}
