package mod

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zsbai/embytoalist/conf"
	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/metrics"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

func fillRequest(req *http.Request) {
	if req.URL.Scheme == "" {
		req.URL.Scheme = "http"
		if req.TLS != nil {
			req.URL.Scheme = "https"
		}
	}
	if req.URL.Host == "" {
		req.URL.Host = req.Host
	}
}

// HandleAccessLog writes one line per request. With no access path the
// lines go to stdout through a bare zap core.
func HandleAccessLog(opt *conf.Logger, next http.HandlerFunc) http.HandlerFunc {
	logWriter := newAccessLog(opt.AccessPath)

	return func(w http.ResponseWriter, req *http.Request) {
		fillRequest(req)

		req, metric := metrics.WithRequestMetric(req)
		req = req.WithContext(log.WithRequestID(req.Context(), metric.RequestID))

		recorder := xhttp.NewResponseRecorder(w)

		defer func() {
			logWriter.Info(string(WithNormalFields(req, recorder)))
		}()

		next(recorder, req)
	}
}

func newAccessLog(path string) *zap.Logger {
	sink := zapcore.AddSync(os.Stdout)
	if path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			LocalTime:  true,
			Compress:   false,
		})
	}

	cfg := zap.NewProductionConfig().EncoderConfig
	cfg.ConsoleSeparator = " "
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {}
	cfg.EncodeLevel = func(_ zapcore.Level, _ zapcore.PrimitiveArrayEncoder) {}

	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		sink,
		zapcore.InfoLevel,
	))
}
