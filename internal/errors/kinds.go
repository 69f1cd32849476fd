package errors

// Kind is the component-facing error taxonomy named in the error handling
// design: each component recovers locally what it can and surfaces the
// remainder to its caller as one of these kinds.
type Kind string

const (
	KindTransientIo          Kind = "TRANSIENT_IO"
	KindNotFound              Kind = "NOT_FOUND"
	KindParseError            Kind = "PARSE_ERROR"
	KindInvariantViolation    Kind = "INVARIANT_VIOLATION"
	KindCancelled             Kind = "CANCELLED"
	KindDeadlineExceeded      Kind = "DEADLINE_EXCEEDED"
	KindBackpressureSaturation Kind = "BACKPRESSURE_SATURATION"
)

var kindCodes = map[Kind]string{
	KindTransientIo:            ErrCodeFileNotFound,
	KindNotFound:                ErrCodeFileNotFound,
	KindParseError:              ErrCodeInvalidInput,
	KindInvariantViolation:      ErrCodeInternal,
	KindCancelled:               ErrCodeInternal,
	KindDeadlineExceeded:        ErrCodeNetworkTimeout,
	KindBackpressureSaturation:  ErrCodeInternal,
}

// KindedError is an EngineError carrying one of the taxonomy Kinds, so callers
// can branch with errors.As/Is instead of string matching.
type KindedError struct {
	*EngineError
	K Kind
}

// GetKind reports the taxonomy kind of err, or "" if err is not a KindedError.
func GetKind(err error) Kind {
	if ke, ok := err.(*KindedError); ok {
		return ke.K
	}
	return ""
}

func newKinded(kind Kind, message string, cause error) *KindedError {
	return &KindedError{
		EngineError: New(kindCodes[kind], message, cause),
		K:         kind,
	}
}

// TransientIo wraps a filesystem or network blip. Retried with backoff at
// the lowest layer; surfaced only after the retry budget is exhausted.
func TransientIo(message string, cause error) *KindedError {
	return newKinded(KindTransientIo, message, cause)
}

// NotFoundErr wraps a path that vanished mid-operation.
func NotFoundErr(message string, cause error) *KindedError {
	return newKinded(KindNotFound, message, cause)
}

// ParseErr wraps malformed frontmatter or text encoding. Callers log it,
// apply defaults, and continue ingestion.
func ParseErr(message string, cause error) *KindedError {
	return newKinded(KindParseError, message, cause)
}

// Invariant wraps a broken contract between components (e.g. an embedding
// count mismatch). Fatal for the current task; never crashes the process.
func Invariant(message string, cause error) *KindedError {
	return newKinded(KindInvariantViolation, message, cause)
}

// CancelledErr wraps cooperative cancellation. Propagated upward without
// being logged as an error.
func CancelledErr(message string) *KindedError {
	return newKinded(KindCancelled, message, nil)
}

// DeadlineExceededErr wraps a search that hit its query deadline; callers
// degrade to the best result obtained so far.
func DeadlineExceededErr(message string) *KindedError {
	return newKinded(KindDeadlineExceeded, message, nil)
}

// BackpressureErr wraps a saturated monitor queue; the caller escalates to
// a full sync rather than surfacing this to the end user.
func BackpressureErr(message string) *KindedError {
	return newKinded(KindBackpressureSaturation, message, nil)
}

// Is supports errors.Is comparisons against the sentinel Kind values below.
func (k *KindedError) Is(target error) bool {
	if sk, ok := target.(sentinelKind); ok {
		return k.K == Kind(sk)
	}
	return k.EngineError.Is(target)
}

type sentinelKind Kind

// Sentinel values usable with errors.Is(err, errors.IsTransientIo), etc.
var (
	IsTransientIo           = sentinelKind(KindTransientIo)
	IsNotFound              = sentinelKind(KindNotFound)
	IsParseError            = sentinelKind(KindParseError)
	IsInvariantViolation    = sentinelKind(KindInvariantViolation)
	IsCancelled             = sentinelKind(KindCancelled)
	IsDeadlineExceeded      = sentinelKind(KindDeadlineExceeded)
	IsBackpressureSaturation = sentinelKind(KindBackpressureSaturation)
)

func (s sentinelKind) Error() string { return string(s) }
