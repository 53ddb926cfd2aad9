package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/chartbuild/cbscript/cbs"
	"github.com/chartbuild/cbscript/chart"
)

var lspCommand = cli.Command{
	Action: lspAction,
	Name:   "lsp",
	Usage:  "Serve diagnostics, completion and hover over stdio",
}

type lspInboundMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type lspResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type lspOutboundMessage struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      *json.RawMessage  `json:"id,omitempty"`
	Method  string            `json:"method,omitempty"`
	Params  any               `json:"params,omitempty"`
	Result  any               `json:"result,omitempty"`
	Error   *lspResponseError `json:"error,omitempty"`
}

type lspDidOpenParams struct {
	TextDocument struct {
		URI  string `json:"uri"`
		Text string `json:"text"`
	} `json:"textDocument"`
}

type lspDidChangeParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	ContentChanges []struct {
		Text string `json:"text"`
	} `json:"contentChanges"`
}

type lspTextDocumentPositionParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Position struct {
		Line      int `json:"line"`
		Character int `json:"character"`
	} `json:"position"`
}

type lspServer struct {
	reader *bufio.Reader
	writer *bufio.Writer
	engine *cbs.Engine
	logger *log.Logger
	docs   map[string]string
}

func lspAction(ctx *cli.Context) error {
	engine, cfg, err := makeEngine(ctx)
	if err != nil {
		return err
	}
	chart.Bind(engine, chart.New(cfg.Chart.Version))
	return newLSPServer(engine, os.Stdin, ctx.App.Writer).serve()
}

func newLSPServer(engine *cbs.Engine, in io.Reader, out io.Writer) *lspServer {
	return &lspServer{
		reader: bufio.NewReader(in),
		writer: bufio.NewWriter(out),
		engine: engine,
		logger: engine.Logger().WithPrefix("lsp"),
		docs:   make(map[string]string),
	}
}

func (s *lspServer) serve() error {
	for {
		payload, err := s.readPayload()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var incoming lspInboundMessage
		if err := json.Unmarshal(payload, &incoming); err != nil {
			s.logger.Warn("dropping malformed message", "err", err)
			continue
		}
		s.logger.Debug("request", "method", incoming.Method)

		for _, msg := range s.handleMessage(incoming) {
			if err := s.writePayload(msg); err != nil {
				return err
			}
		}

		if incoming.Method == "exit" {
			return nil
		}
	}
}

func (s *lspServer) handleMessage(incoming lspInboundMessage) []lspOutboundMessage {
	switch incoming.Method {
	case "initialize":
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Result: map[string]any{
					"capabilities": map[string]any{
						"textDocumentSync": 1,
						"hoverProvider":    true,
						"completionProvider": map[string]any{
							"resolveProvider": false,
						},
					},
					"serverInfo": map[string]any{"name": "cbs-lsp", "version": appVersion},
				},
			},
		}
	case "initialized", "exit":
		return nil
	case "shutdown":
		if incoming.ID == nil {
			return nil
		}
		return []lspOutboundMessage{{JSONRPC: "2.0", ID: incoming.ID, Result: nil}}
	case "textDocument/didOpen":
		var params lspDidOpenParams
		if err := json.Unmarshal(incoming.Params, &params); err != nil {
			return nil
		}
		s.docs[params.TextDocument.URI] = params.TextDocument.Text
		return []lspOutboundMessage{
			s.publishDiagnostics(params.TextDocument.URI, params.TextDocument.Text),
		}
	case "textDocument/didChange":
		var params lspDidChangeParams
		if err := json.Unmarshal(incoming.Params, &params); err != nil {
			return nil
		}
		if len(params.ContentChanges) == 0 {
			return nil
		}
		latest := params.ContentChanges[len(params.ContentChanges)-1].Text
		s.docs[params.TextDocument.URI] = latest
		return []lspOutboundMessage{
			s.publishDiagnostics(params.TextDocument.URI, latest),
		}
	case "textDocument/didClose":
		var params lspDidOpenParams
		if err := json.Unmarshal(incoming.Params, &params); err == nil {
			delete(s.docs, params.TextDocument.URI)
		}
		return nil
	case "textDocument/completion":
		if incoming.ID == nil {
			return nil
		}
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Result: map[string]any{
					"isIncomplete": false,
					"items":        completionItems(s.engine),
				},
			},
		}
	case "textDocument/hover":
		if incoming.ID == nil {
			return nil
		}
		var params lspTextDocumentPositionParams
		if err := json.Unmarshal(incoming.Params, &params); err != nil {
			return []lspOutboundMessage{
				{
					JSONRPC: "2.0",
					ID:      incoming.ID,
					Error:   &lspResponseError{Code: -32602, Message: "invalid hover params"},
				},
			}
		}
		source := s.docs[params.TextDocument.URI]
		word := wordAtPosition(source, params.Position.Line, params.Position.Character)
		if word == "" {
			return []lspOutboundMessage{{JSONRPC: "2.0", ID: incoming.ID, Result: nil}}
		}
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Result: map[string]any{
					"contents": map[string]any{
						"kind":  "markdown",
						"value": s.describeWord(source, word),
					},
				},
			},
		}
	default:
		if incoming.ID == nil {
			return nil
		}
		return []lspOutboundMessage{
			{
				JSONRPC: "2.0",
				ID:      incoming.ID,
				Error:   &lspResponseError{Code: -32601, Message: "method not found"},
			},
		}
	}
}

func (s *lspServer) publishDiagnostics(uri, source string) lspOutboundMessage {
	return lspOutboundMessage{
		JSONRPC: "2.0",
		Method:  "textDocument/publishDiagnostics",
		Params: map[string]any{
			"uri":         uri,
			"diagnostics": diagnosticsForSource(s.engine, source),
		},
	}
}

func diagnosticsForSource(engine *cbs.Engine, source string) []map[string]any {
	_, err := engine.Analyze(source)
	if err == nil {
		return []map[string]any{}
	}

	var ce *cbs.CompileError
	if !errors.As(err, &ce) {
		return []map[string]any{newDiagnostic(0, 0, err.Error(), "")}
	}
	out := make([]map[string]any, 0, len(ce.Errors))
	for _, diag := range ce.Errors {
		out = append(out, newDiagnostic(max(0, diag.Pos.Line-1), max(0, diag.Pos.Column-1), diag.Message, diag.Kind.String()))
	}
	return out
}

func newDiagnostic(line, character int, message, code string) map[string]any {
	diag := map[string]any{
		"range": map[string]any{
			"start": map[string]any{
				"line":      line,
				"character": character,
			},
			"end": map[string]any{
				"line":      line,
				"character": character + 1,
			},
		},
		"severity": 1,
		"source":   "cbs-lsp",
		"message":  message,
	}
	if code != "" {
		diag["code"] = code
	}
	return diag
}

// completionItems offers keywords, type names and the engine's host
// globals.
func completionItems(engine *cbs.Engine) []map[string]any {
	type entry struct {
		kind   int
		detail string
	}
	entries := make(map[string]entry)
	for name, v := range engine.Globals() {
		detail := "builtin"
		if v.Object() != nil {
			detail = "host object"
		}
		entries[name] = entry{kind: 3, detail: detail} // Function
	}
	for _, name := range cbs.TypeNames() {
		entries[name] = entry{kind: 7, detail: "type"} // Class
	}
	for _, keyword := range cbs.Keywords() {
		entries[keyword] = entry{kind: 14, detail: "keyword"} // Keyword
	}

	labels := make([]string, 0, len(entries))
	for label := range entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	items := make([]map[string]any, 0, len(labels))
	for _, label := range labels {
		items = append(items, map[string]any{
			"label":  label,
			"kind":   entries[label].kind,
			"detail": entries[label].detail,
		})
	}
	return items
}

// describeWord renders hover text. Top-level names are resolved against
// the analyzed document.
func (s *lspServer) describeWord(source, word string) string {
	for _, keyword := range cbs.Keywords() {
		if keyword == word {
			return fmt.Sprintf("`%s`\n\nkeyword", word)
		}
	}
	if program, _ := s.engine.Analyze(source); program != nil && program.Scopes != nil {
		if sym, ok := program.Scopes.Lookup(program.Body.Scope, word); ok {
			kind := "variable"
			switch {
			case sym.Function != nil:
				kind = "function"
			case sym.ReadOnly:
				kind = "constant"
			}
			detail := fmt.Sprintf("`%s: %s`\n\n%s", word, sym.Type.Name(), kind)
			if sym.Pos.Line > 0 {
				detail += " declared on line " + strconv.Itoa(sym.Pos.Line)
			}
			return detail
		}
	}
	if v, ok := s.engine.Globals()[word]; ok {
		return fmt.Sprintf("`%s: %s`\n\nhost global", word, v.Type().Name())
	}
	return fmt.Sprintf("`%s`\n\nsymbol", word)
}

func wordAtPosition(source string, line, character int) string {
	lines := strings.Split(source, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}

	runes := []rune(lines[line])
	if len(runes) == 0 {
		return ""
	}
	character = max(0, min(character, len(runes)))

	cursor := character
	if cursor == len(runes) {
		cursor--
	}
	if !isWordRune(runes[cursor]) {
		if cursor > 0 && isWordRune(runes[cursor-1]) {
			cursor--
		} else {
			return ""
		}
	}

	start := cursor
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	end := cursor
	for end < len(runes) && isWordRune(runes[end]) {
		end++
	}
	return string(runes[start:end])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func (s *lspServer) readPayload() ([]byte, error) {
	contentLength := -1
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *lspServer) writePayload(msg lspOutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	return s.writer.Flush()
}
