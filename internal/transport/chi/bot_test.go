package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
)

const queryActivity = `{
	"type": "invoke",
	"name": "composeExtension/query",
	"value": {"commandId": "searchQuery", "parameters": [{"name": "searchQuery", "value": "gate near starbucks"}]}
}`

func postActivity(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body)))
	var out map[string]any
	if rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr, out
}

func TestBot_ComposeExtensionQuery(t *testing.T) {
	q := &stubQuerier{set: gateResults()}
	router := newTestRouter(q, nil, nil)

	rr, _ := postActivity(t, router, queryActivity)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, mode.PureVector, q.last.Mode)
	assert.Equal(t, "gate near starbucks", q.last.Text)

	var resp MessagingExtensionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	ce := resp.ComposeExtension
	assert.Equal(t, "result", ce.Type)
	assert.Equal(t, "list", ce.AttachmentLayout)
	require.Len(t, ce.Attachments, 2)

	first := ce.Attachments[0]
	assert.Equal(t, contentTypeAdaptiveCard, first.ContentType)
	card, ok := first.Content.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AdaptiveCard", card["type"])
	assert.Equal(t, "1.4", card["version"])
	body := card["body"].([]any)
	require.Len(t, body, 2)
	assert.Equal(t, "B7", body[0].(map[string]any)["text"])
	assert.Equal(t, "Large", body[0].(map[string]any)["size"])
	assert.Equal(t, "Terminal B", body[1].(map[string]any)["text"])
	assert.Equal(t, "Small", body[1].(map[string]any)["size"])

	require.NotNil(t, first.Preview)
	assert.Equal(t, contentTypeHeroCard, first.Preview.ContentType)
	hero := first.Preview.Content.(map[string]any)
	assert.Equal(t, "B7", hero["title"])
	assert.Equal(t, "Terminal B", hero["text"])
	assert.Equal(t, defaultBotPreviewImageURL, hero["images"].([]any)[0].(map[string]any)["url"])
}

func TestBot_EmptyQueryText(t *testing.T) {
	q := &stubQuerier{set: gateResults()}
	router := newTestRouter(q, nil, nil)

	rr, out := postActivity(t, router,
		`{"type":"invoke","name":"composeExtension/query","value":{"parameters":[{"name":"q","value":"  "}]}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, q.hits)
	ce := out["composeExtension"].(map[string]any)
	assert.Equal(t, "result", ce["type"])
	assert.Empty(t, ce["attachments"])
}

func TestBot_QueryFailureAnswersMessage(t *testing.T) {
	router := newTestRouter(&stubQuerier{err: errors.New("search down")}, nil, nil)

	rr, out := postActivity(t, router, queryActivity)
	require.Equal(t, http.StatusOK, rr.Code)
	ce := out["composeExtension"].(map[string]any)
	assert.Equal(t, "message", ce["type"])
	assert.Equal(t, botQueryFailedMessage, ce["text"])
}

func TestBot_OtherActivities(t *testing.T) {
	q := &stubQuerier{}
	router := newTestRouter(q, nil, nil)

	for _, body := range []string{
		`{"type":"message","text":"hi"}`,
		`{"type":"invoke","name":"composeExtension/selectItem"}`,
		`{"type":"conversationUpdate"}`,
	} {
		rr, out := postActivity(t, router, body)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, out)
	}
	assert.Zero(t, q.hits)

	rr, _ := postActivity(t, router, `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFieldText(t *testing.T) {
	doc := map[string]any{"s": "x", "n": json.Number("7"), "nil": nil}
	assert.Equal(t, "x", fieldText(doc, "s"))
	assert.Equal(t, "7", fieldText(doc, "n"))
	assert.Equal(t, "", fieldText(doc, "nil"))
	assert.Equal(t, "", fieldText(doc, "missing"))
}
