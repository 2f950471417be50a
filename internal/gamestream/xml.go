package gamestream

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// parseResponse parses a host reply and checks its status. Hosts are known
// to emit loosely-formed XML, so the tolerant HTML parser is used and tag
// names are matched lowercased.
func parseResponse(body []byte) (*html.Node, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse host response: %w", err)
	}

	root := htmlquery.FindOne(doc, "//root")
	if root == nil {
		return nil, fmt.Errorf("parse host response: missing root element")
	}

	code, err := strconv.Atoi(htmlquery.SelectAttr(root, "status_code"))
	if err != nil {
		return nil, fmt.Errorf("parse host response: bad status_code: %w", err)
	}
	if code != 200 {
		msg := htmlquery.SelectAttr(root, "status_message")
		if msg == "" {
			msg = fmt.Sprintf("host returned status %d", code)
		}
		return nil, &streaming.HostError{Code: streaming.CodeError, Message: msg}
	}
	return root, nil
}

// search returns the text of the first descendant named tag
func search(n *html.Node, tag string) (string, bool) {
	found := htmlquery.FindOne(n, ".//"+strings.ToLower(tag))
	if found == nil {
		return "", false
	}
	return strings.TrimSpace(htmlquery.InnerText(found)), true
}

func searchString(n *html.Node, tag string) string {
	s, _ := search(n, tag)
	return s
}

func searchInt(n *html.Node, tag string) int {
	s, ok := search(n, tag)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func parseServerInfo(root *html.Node) *ServerInfo {
	info := &ServerInfo{
		Hostname:               searchString(root, "hostname"),
		UniqueID:               searchString(root, "uniqueid"),
		AppVersion:             searchString(root, "appversion"),
		GfeVersion:             searchString(root, "GfeVersion"),
		State:                  searchString(root, "state"),
		CurrentGame:            searchInt(root, "currentgame"),
		ServerCodecModeSupport: searchInt(root, "ServerCodecModeSupport"),
		Paired:                 searchString(root, "PairStatus") == "1",
		MAC:                    searchString(root, "mac"),
		LocalIP:                searchString(root, "LocalIP"),
	}

	for _, n := range htmlquery.Find(root, ".//displaymode") {
		mode := DisplayMode{
			Width:       searchInt(n, "Width"),
			Height:      searchInt(n, "Height"),
			RefreshRate: searchInt(n, "RefreshRate"),
		}
		if mode.Width > 0 && mode.Height > 0 {
			info.DisplayModes = append(info.DisplayModes, mode)
		}
	}
	return info
}

func parseAppList(root *html.Node) []streaming.App {
	var apps []streaming.App
	for _, n := range htmlquery.Find(root, ".//app") {
		id, err := strconv.Atoi(searchString(n, "ID"))
		if err != nil {
			continue
		}
		apps = append(apps, streaming.App{
			ID:           id,
			Name:         searchString(n, "AppTitle"),
			HDRSupported: searchString(n, "IsHdrSupported") == "1",
		})
	}
	return apps
}
