package storekit

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

// ErrMissingTransactionID — в проверенной нагрузке нет идентификатора транзакции.
var ErrMissingTransactionID = errors.New("signed transaction has no transactionId")

// Verifier проверяет подпись транзакций.
type Verifier struct {
	methods []string
	key     any
}

// NewHMACVerifier проверяет транзакции, подписанные HS256 общим секретом (песочница).
func NewHMACVerifier(secret []byte) *Verifier {
	return &Verifier{
		methods: []string{jwt.SigningMethodHS256.Alg()},
		key:     secret,
	}
}

// NewECDSAVerifier проверяет транзакции, подписанные ES256, по публичному ключу в PEM.
func NewECDSAVerifier(pemKey []byte) (*Verifier, error) {
	const op = "storekit.NewECDSAVerifier"
	key, err := jwt.ParseECPublicKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return newECDSAVerifier(key), nil
}

// LoadECDSAVerifier читает PEM с публичным ключом из файла.
func LoadECDSAVerifier(path string) (*Verifier, error) {
	const op = "storekit.LoadECDSAVerifier"
	pemKey, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewECDSAVerifier(pemKey)
}

func newECDSAVerifier(key *ecdsa.PublicKey) *Verifier {
	return &Verifier{
		methods: []string{jwt.SigningMethodES256.Alg()},
		key:     key,
	}
}

// Verify разбирает подписанную транзакцию. Ошибка подписи не возвращается как
// ошибка: транзакция помечается Unverified, а причина попадает в VerificationFailure.
// Ошибка возвращается, только если нагрузку нельзя прочитать совсем.
func (v *Verifier) Verify(raw string) (models.Transaction, error) {
	const op = "storekit.Verify"

	claims := &TransactionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods(v.methods))
	if err == nil {
		if claims.TransactionID == "" {
			return models.Transaction{}, fmt.Errorf("%s: %w", op, ErrMissingTransactionID)
		}
		tx := claims.transaction()
		tx.Verification = models.Verified
		tx.Raw = raw
		return tx, nil
	}

	unverified := &TransactionClaims{}
	if _, _, perr := jwt.NewParser().ParseUnverified(raw, unverified); perr != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, perr)
	}
	tx := unverified.transaction()
	tx.Verification = models.Unverified
	tx.VerificationFailure = err.Error()
	tx.Raw = raw
	return tx, nil
}

// Signer подписывает транзакции HS256. Используется песочницей магазина.
type Signer struct {
	secret []byte
}

// NewSigner создаёт Signer с общим секретом.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign возвращает подписанное представление транзакции.
func (s *Signer) Sign(tx models.Transaction) (string, error) {
	const op = "storekit.Sign"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ClaimsFromTransaction(tx))
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}
