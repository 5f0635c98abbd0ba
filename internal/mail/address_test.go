package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveAddress(t *testing.T) {
	t.Run("尖括号地址优先", func(t *testing.T) {
		addr, err := ResolveAddress(`"Jane Doe" <Foo@Bar.COM>`)
		assert.NoError(t, err)
		assert.Equal(t, "foo@bar.com", addr)
	})

	t.Run("裸地址", func(t *testing.T) {
		addr, err := ResolveAddress("abc123@drop.mail")
		assert.NoError(t, err)
		assert.Equal(t, "abc123@drop.mail", addr)
	})

	t.Run("带显示名但无尖括号时提取受限形式地址", func(t *testing.T) {
		addr, err := ResolveAddress("Jane Doe foo@bar.com, more text")
		assert.NoError(t, err)
		assert.Equal(t, "foo@bar.com", addr)
	})

	t.Run("宽松兜底取首个含@的词", func(t *testing.T) {
		addr, err := ResolveAddress("weird token@localdomain here")
		assert.NoError(t, err)
		assert.Equal(t, "token@localdomain", addr)
	})

	t.Run("大小写与空白归一化", func(t *testing.T) {
		addr, err := ResolveAddress("  <  ABC@Drop.Mail  > ")
		assert.NoError(t, err)
		assert.Equal(t, "abc@drop.mail", addr)
	})

	t.Run("归一化结果幂等", func(t *testing.T) {
		first, err := ResolveAddress("Some One <User.Name@Example.ORG>")
		assert.NoError(t, err)
		second, err := ResolveAddress(first)
		assert.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("无法提取地址时返回 ErrNoAddress", func(t *testing.T) {
		_, err := ResolveAddress("no address here")
		assert.ErrorIs(t, err, ErrNoAddress)
	})

	t.Run("空输入返回 ErrNoAddress", func(t *testing.T) {
		_, err := ResolveAddress("")
		assert.ErrorIs(t, err, ErrNoAddress)
	})

	t.Run("尖括号内无@视为无效", func(t *testing.T) {
		_, err := ResolveAddress("<not-an-address>")
		assert.ErrorIs(t, err, ErrNoAddress)
	})
}
