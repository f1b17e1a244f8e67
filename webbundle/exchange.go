package webbundle

// Exchange is a Request paired with its Response, the unit a Bundle stores
// in insertion order.
type Exchange struct {
	Request  Request
	Response Response
}

// NewRawExchange pairs a request and response with no convenience defaults.
func NewRawExchange(req Request, resp Response) Exchange {
	return Exchange{Request: req, Response: resp}
}
