package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/metrics"
)

func TestObserveCountsEvents(t *testing.T) {
	c := metrics.NewCollector()

	for _, e := range []captcha.Event{
		{Kind: captcha.EventGenerated},
		{Kind: captcha.EventPassStarted},
		{Kind: captcha.EventDigitStarted},
		{Kind: captcha.EventDigitStarted},
		{Kind: captcha.EventPassFinished, Outcome: captcha.OutcomeSuperseded},
		{Kind: captcha.EventPassStarted},
		{Kind: captcha.EventPassFinished, Outcome: captcha.OutcomeCompleted},
		{Kind: captcha.EventVerdict, Verdict: captcha.Incorrect},
		{Kind: captcha.EventVerdict, Verdict: captcha.Correct},
		{Kind: captcha.EventRejected, Err: captcha.ErrEmptyInput},
		{Kind: captcha.EventRejected, Err: captcha.ErrAssetsMissing},
		{Kind: captcha.EventRejected, Err: errors.New("other")},
		{Kind: captcha.EventStopped},
	} {
		c.Observe(e)
	}

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	assert.Equal(t, 1.0, counter(t, byName, "captcha_generated_total", nil))
	assert.Equal(t, 2.0, counter(t, byName, "captcha_passes_started_total", nil))
	assert.Equal(t, 2.0, counter(t, byName, "captcha_digits_played_total", nil))
	assert.Equal(t, 1.0, counter(t, byName, "captcha_passes_finished_total", map[string]string{"outcome": "completed"}))
	assert.Equal(t, 1.0, counter(t, byName, "captcha_passes_finished_total", map[string]string{"outcome": "superseded"}))
	assert.Equal(t, 1.0, counter(t, byName, "captcha_verdicts_total", map[string]string{"verdict": "correct"}))
	assert.Equal(t, 1.0, counter(t, byName, "captcha_verdicts_total", map[string]string{"verdict": "incorrect"}))
	assert.Equal(t, 1.0, counter(t, byName, "captcha_rejections_total", map[string]string{"reason": "EMPTY_INPUT"}))
	assert.Equal(t, 1.0, counter(t, byName, "captcha_rejections_total", map[string]string{"reason": "ASSETS_MISSING"}))
	assert.Equal(t, 1.0, counter(t, byName, "captcha_rejections_total", map[string]string{"reason": "OTHER"}))
}

// counter finds the sample in family name whose labels equal want.
func counter(t *testing.T, families map[string]*dto.MetricFamily, name string, want map[string]string) float64 {
	t.Helper()

	f, ok := families[name]
	require.True(t, ok, "family %s registered", name)

	for _, m := range f.GetMetric() {
		got := map[string]string{}
		for _, l := range m.GetLabel() {
			got[l.GetName()] = l.GetValue()
		}
		if len(got) == len(want) && (len(want) == 0 || assert.ObjectsAreEqual(want, got)) {
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("no %s sample with labels %v", name, want)
	return 0
}

func TestHandlerExposesCounters(t *testing.T) {
	c := metrics.NewCollector()
	c.Observe(captcha.Event{Kind: captcha.EventGenerated})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "captcha_generated_total 1")
	assert.True(t, strings.Contains(string(body), "go_goroutines"), "runtime collectors are registered")
}

func TestCollectAndCount(t *testing.T) {
	c := metrics.NewCollector()
	c.Observe(captcha.Event{Kind: captcha.EventVerdict, Verdict: captcha.Correct})

	n, err := testutil.GatherAndCount(c.Registry(), "captcha_verdicts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
