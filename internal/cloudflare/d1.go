package cloudflare

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
)

type d1Request struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// D1Query runs sql through the D1 query endpoint, which returns rows as
// objects.
func (c *Client) D1Query(ctx context.Context, sql string, params []any) (*D1Result, error) {
	return c.d1(ctx, "query", sql, params)
}

// D1Exec runs sql through the D1 raw endpoint, which returns rows as
// positional arrays alongside a column list.
func (c *Client) D1Exec(ctx context.Context, sql string, params []any) (*D1Result, error) {
	return c.d1(ctx, "raw", sql, params)
}

// ParseParams reads statement parameters from text. A value starting with "["
// is a JSON array; anything else is split on commas into string parameters.
func ParseParams(raw string) ([]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var params []any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, ErrInvalidParams
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, ErrInvalidParams
		}
		return params, nil
	}

	parts := strings.Split(raw, ",")
	params := make([]any, len(parts))
	for i, p := range parts {
		params[i] = p
	}
	return params, nil
}

func (c *Client) d1(ctx context.Context, endpoint, sql string, params []any) (*D1Result, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, ErrEmptySQL
	}

	body, err := c.fetch(ctx, "d1", endpoint, http.MethodPost, c.d1BaseURL+"/"+endpoint, d1Request{SQL: sql, Params: params})
	if err != nil {
		return nil, err
	}

	result, err := NormalizeD1Result(body)
	if err != nil {
		return nil, errors.Wrapf(err, "d1 %s", endpoint)
	}

	logger.Get().Debug().Int("rows", len(result.Rows)).Str("endpoint", endpoint).Msg("D1 result normalized")
	return result, nil
}

// NormalizeD1Result turns a D1 response body into a D1Result. The first
// statement result is used. Its "results" may be a list of row objects
// (query endpoint) or a {columns, rows} table (raw endpoint); tables are
// zipped into row objects, truncating to the shorter of columns and values.
func NormalizeD1Result(body []byte) (*D1Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.Wrap(ErrMalformedResponse, "body is not valid JSON")
	}

	success := gjson.GetBytes(body, "success")
	if !success.Exists() {
		return nil, ErrMissingSuccess
	}

	out := &D1Result{Rows: []map[string]any{}}
	if success.Type != gjson.True {
		logger.Get().Warn().
			RawJSON("errors", []byte(rawOr(gjson.GetBytes(body, "errors"), "[]"))).
			Msg("D1 reported success=false")
		return out, nil
	}

	first := gjson.GetBytes(body, "result.0")
	if !first.Exists() {
		return nil, ErrEmptyResult
	}

	out.ExecInfo = execInfoFrom(first.Get("meta"))

	results := first.Get("results")
	switch {
	case results.IsArray():
		rows, err := decodeRowObjects(results.Raw)
		if err != nil {
			return nil, err
		}
		out.Rows = rows
	case results.IsObject():
		rows, err := zipRows(results.Get("columns"), results.Get("rows"))
		if err != nil {
			return nil, err
		}
		out.Rows = rows
	}

	return out, nil
}

func execInfoFrom(meta gjson.Result) ExecInfo {
	var info ExecInfo
	if v := meta.Get("duration"); v.Exists() && v.Type == gjson.Number {
		d := v.Float()
		info.Duration = &d
	}
	if v := meta.Get("last_row_id"); v.Exists() && v.Type == gjson.Number {
		id := v.Int()
		info.LastRowID = &id
	}
	if v := meta.Get("changes"); v.Exists() && v.Type == gjson.Number {
		n := v.Int()
		info.Changes = &n
	}
	return info
}

func decodeRowObjects(raw string) ([]map[string]any, error) {
	rows := []map[string]any{}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return rows, nil
}

func zipRows(columns, rows gjson.Result) ([]map[string]any, error) {
	names := make([]string, 0, len(columns.Array()))
	for _, c := range columns.Array() {
		names = append(names, c.String())
	}

	out := []map[string]any{}
	for _, row := range rows.Array() {
		values := row.Array()
		n := len(names)
		if len(values) < n {
			n = len(values)
		}
		m := make(map[string]any, n)
		for i := 0; i < n; i++ {
			v, err := decodeValue(values[i].Raw)
			if err != nil {
				return nil, err
			}
			m[names[i]] = v
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeValue(raw string) (any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return v, nil
}

func rawOr(r gjson.Result, fallback string) string {
	if !r.Exists() || r.Raw == "" {
		return fallback
	}
	return r.Raw
}
