package logging

import (
	"go.uber.org/zap/zapcore"
)

// NewMultiCoreWithWriters tees output to a console writer and a file writer.
// The file always receives JSON; the console receives coloured text in
// development mode and JSON otherwise.
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)

	return zapcore.NewTee(NewConsoleCore(level, consoleWriter, isDev), fileCore)
}

// NewConsoleCore builds the console half of the tee on its own.
func NewConsoleCore(level zapcore.Level, consoleWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var encoder zapcore.Encoder
	if isDev {
		encoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(encoder, consoleWriter, level)
}
