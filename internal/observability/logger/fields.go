package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - AUTENTICACIÓN
// =================================================================================

// Provider identifica el provider externo (github, developer, ...).
func Provider(v string) zap.Field { return zap.String("provider", v) }

// Strategy identifica la estrategia registrada en authn (omni_github, ...).
func Strategy(v string) zap.Field { return zap.String("strategy", v) }

// Scope es el discriminador de sesión usado por authn.
func Scope(v string) zap.Field { return zap.String("scope", v) }

// Outcome resume la decisión tomada (success, redirect, unknown_handler, ...).
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// SessionID nunca debe loguear el cookie firmado, solo el id.
func SessionID(v string) zap.Field { return zap.String("session_id", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
