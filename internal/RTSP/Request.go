package RTSP

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Request struct {
	Method  string
	URL     string
	Version string
	Header  map[string]string
	Body    string
}

// ReadRequest parses one RTSP request off the control socket and fills the
// context with the parsed method and url.
func ReadRequest(ctx *Context, r *bufio.Reader) (req Request, err error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return req, errors.Wrap(ErrProtocol, err.Error())
	}
	//Request-Line
	parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(parts) != 3 {
		return req, errors.Wrap(ErrProtocol, "request line format error")
	}
	req.Method = parts[0]
	req.URL = parts[1]
	req.Version = parts[2]
	req.Header = make(map[string]string)
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			return req, errors.Wrap(ErrProtocol, "read request header error")
		}
		if len(strings.TrimSpace(line)) == 0 {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return req, errors.Wrap(ErrProtocol, "request header format error")
		}
		req.Header[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if contentLengthStr, ok := req.Header[ContentLength]; ok {
		var contentLength int
		contentLength, err = strconv.Atoi(contentLengthStr)
		if err != nil {
			return req, errors.Wrap(ErrProtocol, "request header Content-Length error")
		}
		if contentLength > 0 {
			data := make([]byte, contentLength)
			if _, err = io.ReadFull(r, data); err != nil {
				return req, errors.Wrap(ErrProtocol, "read request body error")
			}
			req.Body = string(data)
		}
	}
	ctx.method = req.Method
	ctx.req = req
	ctx.url, err = url.Parse(req.URL)
	if err != nil && req.URL != "*" {
		return req, errors.Wrap(ErrProtocol, "request url format error")
	}
	return req, nil
}

func (r *Request) String() string {
	var str strings.Builder
	str.WriteString(fmt.Sprintf("%s %s %s\r\n", r.Method, r.URL, r.Version))
	for key, val := range r.Header {
		str.WriteString(fmt.Sprintf("%s: %s\r\n", key, val))
	}
	str.WriteString("\r\n")
	str.WriteString(r.Body)
	return str.String()
}
