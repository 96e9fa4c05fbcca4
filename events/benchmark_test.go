package events

import (
	"io"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
)

func newBenchBus(opts ...Option) *Bus {
	return NewBus(append([]Option{WithLogger(log.NewStdLogger(io.Discard))}, opts...)...)
}

func BenchmarkEmit(b *testing.B) {
	bus := newBenchBus()
	defer bus.Close()
	bus.On(InstanceData, func(args ...any) {})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Emit(InstanceData, "inst-1", 42)
	}
}

func BenchmarkEmitWithMiddlewareAndHistory(b *testing.B) {
	bus := newBenchBus(WithHistory(NewHistory(256)))
	defer bus.Close()
	bus.Use(SchemaShapeMiddleware(bus.Logger()), ErrorPayloadMiddleware(bus.Logger()))
	bus.On(InstanceData, func(args ...any) {})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Emit(InstanceData, "inst-1", 42)
	}
}

func BenchmarkSubscribeOff(b *testing.B) {
	bus := newBenchBus()
	defer bus.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		off := bus.On(ThemeChanged, func(args ...any) {})
		off()
	}
}

func BenchmarkConcurrentEmit(b *testing.B) {
	bus := newBenchBus()
	defer bus.Close()
	bus.On(InstanceData, func(args ...any) {})

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bus.Emit(InstanceData, "inst-1", 42)
		}
	})
}
