package model

import "time"

// EmailConfirmation models an entry in the `email_confirmations` table.
// Tokens are opaque random strings mailed to the user; a row is consumed
// (deleted) on successful confirmation.  At most one unexpired row should
// exist per user – the account service deletes prior rows before issuing a
// new one.
//
// Fields:
//  ID        – UUID primary key.
//  UserID    – owner of the token.
//  Token     – unique, unguessable token value sent by mail.
//  ExpiresAt – expiration timestamp (issued_at + 24h).
//  CreatedAt – timestamp of creation.
type EmailConfirmation struct {
    ID        string    // email_confirmations.id
    UserID    string    // email_confirmations.user_id
    Token     string    // email_confirmations.token
    ExpiresAt time.Time // email_confirmations.expires_at
    CreatedAt time.Time // email_confirmations.created_at
}

// PasswordReset models an entry in the `password_resets` table.  Unlike
// confirmation tokens, a reset token is not deleted on use: it is marked
// used so a captured link cannot be replayed inside its 1h window.
//
// Fields:
//  ID        – UUID primary key.
//  UserID    – owner of the token.
//  Token     – unique, unguessable token value sent by mail.
//  ExpiresAt – expiration timestamp (issued_at + 1h).
//  Used      – set to true once the token resets a password.
//  CreatedAt – timestamp of creation.
type PasswordReset struct {
    ID        string    // password_resets.id
    UserID    string    // password_resets.user_id
    Token     string    // password_resets.token
    ExpiresAt time.Time // password_resets.expires_at
    Used      bool      // password_resets.used
    CreatedAt time.Time // password_resets.created_at
}
