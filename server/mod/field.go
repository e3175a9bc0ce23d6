package mod

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zsbai/embytoalist/metrics"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

const layout = "[02/Jan/2006:15:04:05 -0700]"

// WithNormalFields renders one access-log line.
func WithNormalFields(req *http.Request, resp *xhttp.ResponseRecorder) []byte {
	metric := metrics.FromContext(req.Context())

	buf := NewFieldBuffer(' ')

	// 1. client-ip
	buf.Append(xhttp.ClientIP(req.RemoteAddr, req.Header))
	// 2. domain
	buf.Append(req.URL.Hostname())
	// 3. request time
	buf.Append(time.Now().Format(layout))
	// 4. request line
	buf.FAppend(fmt.Sprintf("%s %s %s", req.Method, req.URL, req.Proto))
	// 5. response status
	buf.Append(strconv.Itoa(resp.Status()))
	// 6. response body size
	buf.Append(strconv.FormatUint(resp.Size(), 10))
	// 7. user-agent
	buf.FAppend(req.Header.Get("User-Agent"))
	// 8. request range header
	buf.FAppend(req.Header.Get("Range"))
	// 9. response time (ms)
	buf.Append(strconv.FormatInt(time.Since(metric.StartAt).Milliseconds(), 10))
	// 10. cache status
	buf.Append(metric.CacheStatus)
	// 11. request-id
	buf.Append(metric.RequestID)

	return buf.Bytes()
}
