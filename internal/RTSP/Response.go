package RTSP

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Response struct {
	Version    string
	StatusCode int
	Status     string
	Header     map[string]string
	Body       string
}

func GenerateResponse(code int, desc string, header map[string]string, body string) (resp Response) {
	resp.Version = RTSP_VERSION
	resp.StatusCode = code
	resp.Status = desc
	resp.Header = header
	resp.Body = body
	if len(body) > 0 {
		resp.Header[ContentLength] = strconv.Itoa(len(body))
	}
	return
}

func (r *Response) String() string {
	var str strings.Builder
	str.WriteString(fmt.Sprintf("%s %d %s\r\n", r.Version, r.StatusCode, r.Status))
	for key, value := range r.Header {
		str.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
	}
	str.WriteString("\r\n")
	str.WriteString(r.Body)
	return str.String()
}

// ReadResponse parses a response off a reader, used by the tests to walk a
// full request/response exchange.
func ReadResponse(r *bufio.Reader) (resp Response, err error) {
	respLine, err := r.ReadString('\n')
	if err != nil {
		return resp, err
	}
	parts := strings.SplitN(strings.TrimSpace(respLine), " ", 3)
	if len(parts) != 3 {
		return resp, errors.New("response line format error")
	}
	resp.Version = parts[0]
	resp.StatusCode, err = strconv.Atoi(parts[1])
	if err != nil {
		return resp, errors.Wrap(err, "response status format error")
	}
	resp.Status = parts[2]
	resp.Header = make(map[string]string)
	for {
		var line string
		line, err = r.ReadString('\n')
		if err != nil {
			return resp, err
		}
		if len(strings.TrimSpace(line)) == 0 {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return resp, errors.New("response header format error")
		}
		resp.Header[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if contentLengthStr, ok := resp.Header[ContentLength]; ok {
		var contentLength int
		contentLength, err = strconv.Atoi(contentLengthStr)
		if err != nil {
			return resp, errors.Wrap(err, "response Content-Length format error")
		}
		if contentLength > 0 {
			data := make([]byte, contentLength)
			if _, err = io.ReadFull(r, data); err != nil {
				return resp, err
			}
			resp.Body = string(data)
		}
	}
	return resp, nil
}
