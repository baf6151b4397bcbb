package RTSP

import "net/url"

// Context carries one request/response exchange through the method handlers.
type Context struct {
	url    *url.URL
	method string
	req    Request
	resp   Response

	// set only when a TEARDOWN was accepted, the session closes after the
	// response is on the wire
	teardown bool
}

func NewContext() *Context {
	return &Context{}
}
