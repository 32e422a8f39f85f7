package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	APIKeyHeader   = "X-API-KEY"
	DefaultChannel = "api"
)

type channelKey struct{}

// channelPrefixes maps API key prefixes to the submitting channel recorded on rewards.
var channelPrefixes = []struct{ prefix, channel string }{
	{"lms_", "lms"},
	{"web_", "online"},
	{"partner_", "partner"},
	{"pos_", "pos"},
}

func channelOf(apiKey string) string {
	for _, p := range channelPrefixes {
		if strings.HasPrefix(apiKey, p.prefix) {
			return p.channel
		}
	}
	return DefaultChannel
}

func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

// GetChannel returns the caller channel, DefaultChannel when unset.
func GetChannel(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey{}).(string); ok {
		return ch
	}
	return DefaultChannel
}

func FromChannel(ctx context.Context, want string) bool {
	ch, ok := ctx.Value(channelKey{}).(string)
	return ok && ch == want
}

// Channel stores the caller channel on the request context.
func Channel() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithChannel(c.Request.Context(), channelOf(c.GetHeader(APIKeyHeader)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ChannelInterceptor is the gRPC counterpart of Channel, reading x-api-key metadata.
func ChannelInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := ""
		if vals := metadata.ValueFromIncomingContext(ctx, "x-api-key"); len(vals) > 0 {
			key = vals[0]
		}
		return handler(WithChannel(ctx, channelOf(key)), req)
	}
}
