package relation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/assoc/orm"
	"github.com/mickamy/assoc/relation"
	"github.com/mickamy/assoc/schema"
)

func declare(t *testing.T, opts ...relation.Option) (*relation.HasOne, *schema.Registry) {
	t.Helper()
	reg := schema.NewRegistry()
	profile := reg.MustDefine("Profile",
		schema.Attr("id", schema.Int, schema.PrimaryKey, schema.AutoIncrement),
		schema.Attr("nickname", schema.String),
	)
	address := reg.MustDefine("Address",
		schema.Attr("id", schema.Int, schema.PrimaryKey, schema.AutoIncrement),
		schema.Attr("city", schema.String),
		schema.Attr("kind", schema.String, schema.Nullable),
	)
	h, err := relation.New(profile, address, opts...)
	require.NoError(t, err)
	return h, reg
}

func TestDeclarationInjectsForeignKey(t *testing.T) {
	t.Parallel()

	h, reg := declare(t)
	require.NoError(t, reg.Finalize())

	address := reg.MustEntity("Address")
	fk, ok := address.Attr("profileId")
	require.True(t, ok, "foreign key attribute missing")
	assert.Equal(t, schema.Int, fk.Type)
	assert.True(t, fk.Nullable)
	assert.Equal(t, "profile_id", fk.Column)

	// Exactly one attribute carries the name.
	var count int
	for _, a := range address.Attributes() {
		if a.Name == "profileId" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	assert.Equal(t, "profileId", h.ForeignKey())
	assert.Equal(t, "id", h.SourceKey())
	assert.Equal(t, "id", h.SourceKeyField())
	assert.True(t, h.SourceKeyIsPrimary())
	assert.Equal(t, "profile_id", h.IdentifierField())
}

func TestDeclarationRegistersReference(t *testing.T) {
	t.Parallel()

	_, reg := declare(t)
	require.NoError(t, reg.Finalize())

	refs := reg.MustEntity("Address").References()
	require.Len(t, refs, 1)
	assert.Equal(t, "profileId", refs[0].Attribute)
	assert.Equal(t, "profiles", refs[0].Table)
	assert.Equal(t, "id", refs[0].Column)
	// Nullable key defaults to SET NULL / CASCADE.
	assert.Equal(t, schema.SetNull, refs[0].OnDelete)
	assert.Equal(t, schema.Cascade, refs[0].OnUpdate)
}

func TestRequiredKeyDefaultsToCascade(t *testing.T) {
	t.Parallel()

	_, reg := declare(t, relation.Required)
	require.NoError(t, reg.Finalize())

	address := reg.MustEntity("Address")
	fk, _ := address.Attr("profileId")
	assert.False(t, fk.Nullable)

	refs := address.References()
	require.Len(t, refs, 1)
	assert.Equal(t, schema.Cascade, refs[0].OnDelete)
	assert.Equal(t, schema.Cascade, refs[0].OnUpdate)
}

func TestOnDeleteOverride(t *testing.T) {
	t.Parallel()

	_, reg := declare(t, relation.OnDelete(schema.Restrict))
	require.NoError(t, reg.Finalize())

	refs := reg.MustEntity("Address").References()
	require.Len(t, refs, 1)
	assert.Equal(t, schema.Restrict, refs[0].OnDelete)
}

func TestWithoutConstraintsSkipsReference(t *testing.T) {
	t.Parallel()

	_, reg := declare(t, relation.WithoutConstraints)
	require.NoError(t, reg.Finalize())

	assert.Empty(t, reg.MustEntity("Address").References())
}

func TestExplicitForeignKeyName(t *testing.T) {
	t.Parallel()

	h, reg := declare(t, relation.ForeignKey("ownerId"))
	require.NoError(t, reg.Finalize())

	assert.Equal(t, "ownerId", h.ForeignKey())
	_, ok := reg.MustEntity("Address").Attr("ownerId")
	assert.True(t, ok)
	assert.Equal(t, "owner_id", h.IdentifierField())
}

func TestForeignKeyAttributeSpec(t *testing.T) {
	t.Parallel()

	h, reg := declare(t, relation.ForeignKeyAttribute(
		schema.Attr("ownerRef", schema.Int64, schema.Nullable, schema.Column("owner_ref")),
	))
	require.NoError(t, reg.Finalize())

	assert.Equal(t, "ownerRef", h.ForeignKey())
	fk, ok := reg.MustEntity("Address").Attr("ownerRef")
	require.True(t, ok)
	assert.Equal(t, schema.Int64, fk.Type)
	assert.Equal(t, "owner_ref", fk.Column)
	assert.Equal(t, "owner_ref", h.IdentifierField())
}

func TestAliasDefaultsToTargetSingular(t *testing.T) {
	t.Parallel()

	h, _ := declare(t)
	assert.Equal(t, "Address", h.Alias())
}

func TestAliasChangesForeignKeyDerivation(t *testing.T) {
	t.Parallel()

	h, reg := declare(t, relation.Alias("Owner"))
	require.NoError(t, reg.Finalize())

	assert.Equal(t, "ownerId", h.ForeignKey())
	assert.Equal(t, "Owner", h.Alias())
}

func TestSourceKeyOverride(t *testing.T) {
	t.Parallel()

	h, reg := declare(t, relation.SourceKey("nickname"))
	require.NoError(t, reg.Finalize())

	assert.Equal(t, "nickname", h.SourceKey())
	assert.False(t, h.SourceKeyIsPrimary())
	assert.Equal(t, "profileNickname", h.ForeignKey())

	fk, ok := reg.MustEntity("Address").Attr("profileNickname")
	require.True(t, ok)
	assert.Equal(t, schema.String, fk.Type, "foreign key type follows the source key attribute")
}

func TestUnknownSourceKeyFailsAtDeclaration(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	profile := reg.MustDefine("Profile", schema.Attr("id", schema.Int, schema.PrimaryKey))
	address := reg.MustDefine("Address", schema.Attr("id", schema.Int, schema.PrimaryKey))

	_, err := relation.New(profile, address, relation.SourceKey("nope"))
	assert.True(t, schema.IsUnknownAttribute(err))
}

func TestNamingCollisionFailsAtFinalize(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	profile := reg.MustDefine("Profile", schema.Attr("id", schema.Int, schema.PrimaryKey))
	address := reg.MustDefine("Address",
		schema.Attr("id", schema.Int, schema.PrimaryKey),
		schema.Attr("profileId", schema.String), // incompatible type
	)

	_, err := relation.New(profile, address)
	require.NoError(t, err)

	assert.True(t, schema.IsNamingCollision(reg.Finalize()))
}

func TestPreDeclaredCompatibleForeignKeyKept(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	profile := reg.MustDefine("Profile", schema.Attr("id", schema.Int, schema.PrimaryKey))
	address := reg.MustDefine("Address",
		schema.Attr("id", schema.Int, schema.PrimaryKey),
		schema.Attr("profileId", schema.Int, schema.Column("owner_id")),
	)

	h, err := relation.New(profile, address)
	require.NoError(t, err)
	require.NoError(t, reg.Finalize())

	// The pre-declared attribute wins, including its column override.
	assert.Equal(t, "owner_id", h.IdentifierField())
	assert.Len(t, reg.MustEntity("Address").Attributes(), 2)
}

func TestCircularDeclarations(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	user := reg.MustDefine("User", schema.Attr("id", schema.Int, schema.PrimaryKey))
	account := reg.MustDefine("Account", schema.Attr("id", schema.Int, schema.PrimaryKey))

	ua, err := relation.New(user, account)
	require.NoError(t, err)
	au, err := relation.New(account, user)
	require.NoError(t, err)

	require.NoError(t, reg.Finalize())

	_, ok := account.Attr("userId")
	assert.True(t, ok)
	_, ok = user.Attr("accountId")
	assert.True(t, ok)
	assert.Equal(t, "user_id", ua.IdentifierField())
	assert.Equal(t, "account_id", au.IdentifierField())
}

func TestCreateTableIncludesInjectedConstraint(t *testing.T) {
	t.Parallel()

	_, reg := declare(t)
	require.NoError(t, reg.Finalize())

	got := orm.CreateTableSQL(orm.MySQL, reg.MustEntity("Address"))
	want := "CREATE TABLE `addresses` (" +
		"`id` INT AUTO_INCREMENT NOT NULL PRIMARY KEY, " +
		"`city` VARCHAR(255) NOT NULL, " +
		"`kind` VARCHAR(255), " +
		"`profile_id` INT, " +
		"FOREIGN KEY (`profile_id`) REFERENCES `profiles` (`id`) ON DELETE SET NULL ON UPDATE CASCADE)"
	assert.Equal(t, want, got)
}

func TestAccessorNames(t *testing.T) {
	t.Parallel()

	h, _ := declare(t)
	acc := h.Accessors()

	assert.Equal(t, "GetAddress", acc.GetName)
	assert.Equal(t, "SetAddress", acc.SetName)
	assert.Equal(t, "CreateAddress", acc.CreateName)
	assert.NotNil(t, acc.Get)
	assert.NotNil(t, acc.Set)
	assert.NotNil(t, acc.Create)
}
