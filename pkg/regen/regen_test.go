package regen

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/ovalmerge/pkg/errors"
)

func TestCounter(t *testing.T) {
	c := NewCounter()
	assert.EqualValues(t, 1, c.Next())
	assert.EqualValues(t, 2, c.Next())
	assert.EqualValues(t, 3, c.Peek())

	seeded := NewCounterFrom(40)
	assert.EqualValues(t, 40, seeded.Next())
}

func TestCounterConcurrent(t *testing.T) {
	c := NewCounter()
	const n = 1000

	var (
		mu   sync.Mutex
		seen = make(map[uint64]bool)
		wg   sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := c.Next()
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestBuildTable(t *testing.T) {
	text := `<root>
<test id="oval:focal.tst:1234" >A test element</test>
<var id="oval:focal.var:4567" >A var element</var>
<other id="not-oval" />
</root>`

	r := New(NewCounter(), Options{})
	table, warnings, err := r.BuildTable("random.xml", text)
	require.NoError(t, err)

	assert.Empty(t, warnings)
	assert.EqualValues(t, Table{
		"oval:focal.tst:1234": "oval:focal.tst:12340000000000000001",
		"oval:focal.var:4567": "oval:focal.var:45670000000000000002",
	}, table)
}

func TestBuildTableIgnoresRefAttributes(t *testing.T) {
	text := `<criterion test_ref="oval:x:tst:1" /><test id="oval:x:tst:2" />`

	table, _, err := New(NewCounter(), Options{}).BuildTable("doc", text)
	require.NoError(t, err)

	assert.Len(t, table, 1)
	assert.Contains(t, table, "oval:x:tst:2")
}

func TestBuildTableSingleQuotes(t *testing.T) {
	table, _, err := New(NewCounter(), Options{}).BuildTable("doc", `<test id='oval:x:tst:7'/>`)
	require.NoError(t, err)
	assert.Equal(t, "oval:x:tst:70000000000000001", table["oval:x:tst:7"])
}

func TestBuildTableDuplicates(t *testing.T) {
	text := `<a id="oval:x:tst:1" /><b id="oval:x:tst:1" /><c id="oval:x:tst:1" /><d id="oval:x:obj:1" />`

	table, warnings, err := New(NewCounter(), Options{}).BuildTable("dup.xml", text)
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, DuplicateIDWarning{Document: "dup.xml", ID: "oval:x:tst:1", Occurrences: 3}, warnings[0])
	assert.Equal(t, "oval:x:tst:10000000000000001", table["oval:x:tst:1"], "first mapping is kept")
	assert.Equal(t, "oval:x:obj:10000000000000002", table["oval:x:obj:1"])
	assert.Contains(t, warnings[0].String(), "dup.xml")
}

func TestBuildTableWidthExceeded(t *testing.T) {
	var b strings.Builder
	for i := range 23 {
		id := fmt.Sprintf("oval:x:%d", 100+i)
		switch i {
		case 2:
			id = "oval:x:12"
		case 22:
			id = "oval:x:1"
		}
		fmt.Fprintf(&b, "<e id=\"%s\"/>\n", id)
	}

	r := New(NewCounter(), Options{Width: 1})
	_, _, err := r.BuildTable("wide.xml", b.String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Contains(t, err.Error(), "width 1 exceeded")

	_, err = r.Regenerate(context.Background(), "wide.xml", b.String())
	require.Error(t, err)
}

func TestBuildTableWidthFits(t *testing.T) {
	text := ""
	for i := range 9 {
		text += fmt.Sprintf("<e id=\"oval:x:%d\"/>", i)
	}
	table, _, err := New(NewCounter(), Options{Width: 1}).BuildTable("doc", text)
	require.NoError(t, err)
	assert.Equal(t, "oval:x:89", table["oval:x:8"])
}

func TestMaxSuffix(t *testing.T) {
	assert.EqualValues(t, 9, maxSuffix(1))
	assert.EqualValues(t, 9999, maxSuffix(4))
	assert.EqualValues(t, uint64(9999999999999999), maxSuffix(DefaultWidth))
	assert.EqualValues(t, uint64(math.MaxUint64), maxSuffix(20))
}

func TestRewrite(t *testing.T) {
	line := `<test id="oval:focal.tst:1234" >A test element</test>` +
		`<var ref_id="oval:focal.tst:1234" >A var element</var>`
	table := Table{"oval:focal.tst:1234": "oval:focal.tst:12340000000000000001"}

	out, err := New(NewCounter(), Options{Workers: 2}).Rewrite(context.Background(), line, table)
	require.NoError(t, err)
	assert.Equal(t, `<test id="oval:focal.tst:12340000000000000001" >A test element</test>`+
		`<var ref_id="oval:focal.tst:12340000000000000001" >A var element</var>`, out)
}

func TestRewritePrefixIDs(t *testing.T) {
	text := `<t id="oval:x:tst:1"/><t id="oval:x:tst:12"/><c test_ref="oval:x:tst:12"/><r>oval:x:tst:1</r>`

	r := New(NewCounter(), Options{})
	res, err := r.Regenerate(context.Background(), "doc", text)
	require.NoError(t, err)

	want := `<t id="oval:x:tst:10000000000000001"/><t id="oval:x:tst:120000000000000002"/>` +
		`<c test_ref="oval:x:tst:120000000000000002"/><r>oval:x:tst:10000000000000001</r>`
	assert.Equal(t, want, res.Text)
}

func TestRewritePreservesLayout(t *testing.T) {
	var b strings.Builder
	for i := range 200 {
		fmt.Fprintf(&b, "  <test id=\"oval:x:tst:%d\" object_ref=\"oval:x:obj:%d\"/>\r\n", i, i)
		fmt.Fprintf(&b, "  <object id=\"oval:x:obj:%d\"/>\n", i)
	}
	b.WriteString("</root>")
	text := b.String()

	for _, workers := range []int{1, 3, 8, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			r := New(NewCounter(), Options{Workers: workers})
			res, err := r.Regenerate(context.Background(), "big", text)
			require.NoError(t, err)

			assert.Equal(t, strings.Count(text, "\n"), strings.Count(res.Text, "\n"))
			assert.Equal(t, strings.Count(text, "\r\n"), strings.Count(res.Text, "\r\n"))
			assert.True(t, strings.HasSuffix(res.Text, "</root>"))
			assert.NotContains(t, res.Text, `"oval:x:tst:5"`)
			assert.Contains(t, res.Text, `object_ref="`+res.Table["oval:x:obj:5"]+`"`)
		})
	}
}

func TestRewriteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(NewCounter(), Options{Workers: 2})
	_, err := r.Rewrite(ctx, "a\nb\n", Table{"oval:x": "oval:x1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRewriteEmptyTable(t *testing.T) {
	out, err := New(nil, Options{}).Rewrite(context.Background(), "<root/>", nil)
	require.NoError(t, err)
	assert.Equal(t, "<root/>", out)
}

func TestRegenerationUniqueAcrossDocuments(t *testing.T) {
	doc := `<tests><test id="oval:foo:test:1" object_ref="oval:foo:obj:1"/></tests>` +
		`<objects><object id="oval:foo:obj:1"/></objects>`

	counter := NewCounter()
	r := New(counter, Options{})
	seen := make(map[string]bool)
	for i := range 5 {
		res, err := r.Regenerate(context.Background(), fmt.Sprintf("doc%d", i), doc)
		require.NoError(t, err)
		for _, id := range res.Table {
			assert.False(t, seen[id], "id %s minted twice", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestCustomSchemeAndWidth(t *testing.T) {
	r := New(NewCounter(), Options{Scheme: "urn:x:", Width: 4})
	res, err := r.Regenerate(context.Background(), "doc", `<a id="urn:x:1"/><a id="oval:y:1"/><b ref="urn:x:1"/>`)
	require.NoError(t, err)
	assert.Equal(t, `<a id="urn:x:10001"/><a id="oval:y:1"/><b ref="urn:x:10001"/>`, res.Text)
}

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{"single line", "abc", 4, []string{"abc"}},
		{"even split", "a\nb\nc\nd\n", 2, []string{"a\nb\n", "c\nd\n"}},
		{"uneven split", "a\nb\nc", 2, []string{"a\nb\n", "c"}},
		{"more workers than lines", "a\nb\n", 8, []string{"a\n", "b\n"}},
		{"zero workers", "a\nb\n", 0, []string{"a\nb\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitChunks(tt.text, tt.n)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""))
		})
	}
}
