package expect_test

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/chainexpect/pkg/expect"
	"github.com/cgast/chainexpect/pkg/verify"
)

func result(t *testing.T, out expect.Output) *expect.Result {
	t.Helper()
	res, ok := out.(*expect.Result)
	require.Truef(t, ok, "output = %T, want *expect.Result", out)
	return res
}

func report(t *testing.T, out expect.Output) string {
	t.Helper()
	res := result(t, out)
	require.False(t, res.Passed(), "expected a failure")
	return res.Err().Error()
}

func naturals(yield func(int) bool) {
	for i := 0; ; i++ {
		if !yield(i) {
			return
		}
	}
}

func TestAllNotPasses(t *testing.T) {
	expect.Must([]int{1, 3, 5}, expect.All(), expect.Not(), verify.ToEqual(4))
}

func TestAllReportsFailingIndex(t *testing.T) {
	msg := report(t, expect.Try([]int{5, 3, 5}, expect.All(), verify.ToEqual(5)))
	assert.Contains(t, msg, "index: 1")
	assert.Contains(t, msg, "received: 3")
	assert.Contains(t, msg, "to_equal: values not equal")
}

func TestAnyPasses(t *testing.T) {
	res := result(t, expect.Try([]int{1, 3, 5}, expect.Any(), verify.ToEqual(3)))
	assert.True(t, res.Passed())
}

func TestEmptyCollections(t *testing.T) {
	all := result(t, expect.Try([]int{}, expect.All(), verify.ToEqual(1)))
	assert.True(t, all.Passed(), "all over nothing passes")

	anyRes := result(t, expect.Try([]int{}, expect.Any(), verify.ToEqual(1)))
	assert.False(t, anyRes.Passed())
	assert.Equal(t, "no outputs", anyRes.Message())
	assert.Contains(t, anyRes.Err().Error(), "to_equal: (not visited)")
}

func TestNotNotPreservesContext(t *testing.T) {
	msg := report(t, expect.Try("hello", expect.Not(), expect.Not(), verify.ToEqual("world")))
	assert.Contains(t, msg, "not: expected a failure, received a success")
	assert.Contains(t, msg, `expected: "world"`)
	assert.NotContains(t, msg, "(not visited)")
}

func TestNotPassesOnInnerFailure(t *testing.T) {
	res := result(t, expect.Try(1, expect.Not(), verify.ToEqual(2)))
	assert.True(t, res.Passed())
}

func TestCount(t *testing.T) {
	expect.Must([]string{"a", "b", "c"}, expect.Count(), verify.ToEqual(3))
	expect.Must(map[string]int{"a": 1}, expect.Count(), verify.ToEqual(1))
}

func TestNthOutOfBounds(t *testing.T) {
	out := expect.Try([]int{1}, expect.Nth(5), verify.ToEqual(1))
	res := result(t, out)
	assert.Equal(t, "index out of bounds", res.Message())
	assert.Contains(t, res.Err().Error(), "to_equal: (not visited)")
}

func TestShortCircuitOverInfiniteSequence(t *testing.T) {
	seq := iter.Seq[int](naturals)

	res := result(t, expect.Try(seq, expect.Any(), verify.ToEqual(10)))
	assert.True(t, res.Passed())

	msg := report(t, expect.Try(seq, expect.All(), verify.ToBeLessThan(5)))
	assert.Contains(t, msg, "index: 5")
}

func TestShortCircuitStopsProducingOutputs(t *testing.T) {
	calls := 0
	recorder := verify.Custom("recorder", func(cx *expect.Context, subject any) expect.Output {
		calls++
		return cx.PassIf(subject.(int) != 2, "hit two")
	})
	expect.Try([]int{1, 2, 3, 4}, expect.All(), recorder)
	assert.Equal(t, 2, calls)
}

func TestToBeSomeAndNone(t *testing.T) {
	var none *int
	res := result(t, expect.Try(none, expect.ToBeSomeAnd(), verify.ToEqual(1)))
	assert.Equal(t, "subject is None", res.Message())
	msg := res.Err().Error()
	assert.Contains(t, msg, "to_be_some_and: subject is None")
	assert.Contains(t, msg, "to_equal: (not visited)")

	expect.Must(expect.Some(1), expect.ToBeSomeAnd(), verify.ToEqual(1))
}

func TestToBeOkAndErrAnd(t *testing.T) {
	expect.Must(expect.OutcomeOf(2, nil), expect.ToBeOkAnd(), verify.ToEqual(2))
	expect.Must(expect.OutcomeOf(0, errors.New("boom")), expect.ToBeErrAnd(), expect.AsString(), verify.ToEqual("boom"))

	res := result(t, expect.Try(expect.OutcomeOf(0, errors.New("boom")), expect.ToBeOkAnd(), verify.ToEqual(0)))
	assert.Equal(t, "subject is Err", res.Message())
	assert.Contains(t, res.Err().Error(), "error: boom")
}

func TestMap(t *testing.T) {
	length := func(s string) int { return len(s) }
	expect.Must("hello", expect.Map(length), verify.ToEqual(5))

	msg := report(t, expect.Try("hello", expect.Map(length), verify.ToEqual(4)))
	assert.Contains(t, msg, "function: ")
	assert.Contains(t, msg, "received: 5")
}

func TestAliasAppearsInReport(t *testing.T) {
	msg := report(t, expect.Try(5, expect.As("is_four", verify.ToEqual(4))))
	assert.Contains(t, msg, "is_four: values not equal")
}

func TestSupplementedModifiers(t *testing.T) {
	expect.Must([]int{1, 2}, expect.Zip([]string{"a", "b", "c"}), expect.Count(), verify.ToEqual(2))
	expect.Must([]int{1, 2}, expect.Zip([]string{"a", "b"}), expect.Nth(1), verify.ToEqual(expect.Pair{Left: 2, Right: "b"}))
	expect.Must("héllo", expect.Chars(), expect.Count(), verify.ToEqual(5))
	expect.Must(strings.NewReader("hi"), expect.WhenRead(), expect.AsUTF8(), verify.ToEqual("hi"))
	expect.Must(func() (int, error) { return 1, nil }, expect.WhenCalled(), expect.ToBeOkAnd(), verify.ToEqual(1))
	expect.Must(func() int { return 7 }, expect.WhenCalled(), verify.ToEqual(7))
	expect.Must(42, expect.AsString(), verify.ToEqual("42"))
	expect.Must(map[string]int{"b": 2, "a": 1}, expect.Nth(0), verify.ToEqual(expect.Entry{Key: "a", Value: 1}))

	res := result(t, expect.Try([]byte{0xff}, expect.AsUTF8(), verify.ToEqual("")))
	assert.Equal(t, "invalid utf8", res.Message())
	assert.Contains(t, res.Err().Error(), "error: invalid utf-8 sequence at byte 0")
}

func TestAsDebugAndAsPtr(t *testing.T) {
	expect.Must("hello", expect.AsDebug(), verify.ToEqual(`"hello"`))
	expect.Must([]int{1}, expect.AsDebug(), verify.ToEqual("[]int{1}"))

	n := 1
	p := &n
	expect.Must(p, expect.AsPtr(), verify.ToEqual(reflect.ValueOf(p).Pointer()))
	expect.Must(p, expect.AsPtr(), verify.ToPointTo(p))

	_, err := expect.Build(reflect.TypeFor[int](), expect.AsPtr(), verify.ToEqual(uintptr(0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "int is not a pointer")

	res := result(t, expect.Try([]any{3}, expect.Nth(0), expect.AsPtr(), verify.ToEqual(uintptr(0))))
	assert.Equal(t, "subject is not a pointer", res.Message())
}

func TestCastKeepsNaNAcrossFloatTypes(t *testing.T) {
	expect.Must(float32(math.NaN()), expect.Map(math.IsNaN), verify.ToBeTrue())

	v, err := expect.Cast[float64](float32(math.NaN()))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	_, err = expect.Cast[int](math.NaN())
	assert.Error(t, err)
	_, err = expect.Cast[int](3.5)
	assert.Error(t, err)
}

func TestMustPanicsWithFailure(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		var failure *expect.Failure
		require.True(t, errors.As(err, &failure))
		assert.True(t, errors.Is(err, expect.ErrAssertionFailed))
		assert.Equal(t, "values not equal", failure.Message())
	}()
	expect.Must(1, verify.ToEqual(2))
}

type fakeTB struct {
	fatal []string
}

func (f *fakeTB) Helper() {}

func (f *fakeTB) Fatal(args ...any) {
	f.fatal = append(f.fatal, fmt.Sprint(args...))
}

func TestThat(t *testing.T) {
	tb := &fakeTB{}
	expect.That(tb, 1, verify.ToEqual(1))
	assert.Empty(t, tb.fatal)

	expect.That(tb, 1, verify.ToEqual(2))
	require.Len(t, tb.fatal, 1)
	assert.True(t, strings.HasPrefix(tb.fatal[0], "assertion failed:"))
	assert.Contains(t, tb.fatal[0], "expect_test.go")
}

func TestBuildErrors(t *testing.T) {
	_, err := expect.Build(nil)
	assert.ErrorIs(t, err, expect.ErrEmptyChain)

	_, err = expect.Build(nil, expect.Not())
	assert.ErrorContains(t, err, "chain must end with an assertion")

	_, err = expect.Build(nil, verify.ToEqual(1), verify.ToEqual(1))
	assert.ErrorContains(t, err, "step 1 (to_equal): assertion must be the last step")

	_, err = expect.Build(reflect.TypeFor[int](), expect.Count(), verify.ToEqual(1))
	assert.ErrorContains(t, err, "step 1 (count)")

	_, err = expect.Build(reflect.TypeFor[[]string](), expect.All(), expect.Map(func(n int) int { return n }), verify.ToEqual(1))
	assert.ErrorContains(t, err, "step 2 (map)")

	chain, err := expect.Build(reflect.TypeFor[[]int](), expect.All(), expect.Not(), verify.ToEqual(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"all", "not", "to_equal"}, chain.Names())
}

func TestInvalidChainPanics(t *testing.T) {
	assert.Panics(t, func() { expect.Try(1, expect.Count(), verify.ToEqual(1)) })
}

func TestEvaluateReturnsBuildError(t *testing.T) {
	_, err := expect.Evaluate(expect.SourceLoc{}, 1, expect.Not())
	assert.Error(t, err)
}

func TestFailureLayout(t *testing.T) {
	res := result(t, expect.Try([]int{1, 2}, expect.Nth(1), verify.ToEqual(3)))
	want := "assertion failed:\n" +
		"  at: " + res.Context().Location().String() + "\n" +
		"  subject: []int{1, 2}\n" +
		"\n" +
		"steps:\n" +
		"  nth:\n" +
		"    received: []int{1, 2}\n" +
		"    index: 1\n" +
		"\n" +
		"  to_equal: values not equal\n" +
		"    received: 2\n" +
		"    expected: 3\n" +
		"\n"
	assert.Equal(t, want, res.Err().Error())
}

func TestFailureLayoutNotVisited(t *testing.T) {
	var none *int
	res := result(t, expect.Try(none, expect.ToBeSomeAnd(), expect.Not(), verify.ToEqual(1)))
	msg := res.Err().Error()
	assert.True(t, strings.HasSuffix(msg, "  not: (not visited)\n  to_equal: (not visited)\n"), msg)
}

func TestPlainFormatterStyles(t *testing.T) {
	res := result(t, expect.Try(1, verify.ToEqual(2)))
	f := expect.TextFormatter{Error: strings.ToUpper}
	out := f.Format(res.Err().(*expect.Failure))
	assert.Contains(t, out, "ASSERTION FAILED:")
	assert.Contains(t, out, "to_equal: VALUES NOT EQUAL")
}
