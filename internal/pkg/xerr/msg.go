package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams       = errors.New("无效的请求参数")
	ErrRetentionOutOfRange = errors.New("保留期限超出允许范围")
	ErrInvalidMaxDownloads = errors.New("最大下载次数必须为正整数")
	ErrFileNameInvalid     = errors.New("文件名包含非法字符")
	ErrFileTooLarge        = errors.New("上传文件过大，超出限制")

	// 认证与授权错误
	ErrUnauthorized       = errors.New("用户未授权")
	ErrTokenInvalid       = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials = errors.New("用户名或密码不正确")
	ErrUserAlreadyExists  = errors.New("该用户名已被注册")
	ErrEmailAlreadyExists = errors.New("邮箱已被注册")

	// 权限错误
	ErrForbidden        = errors.New("禁止访问")
	ErrPermissionDenied = errors.New("您没有操作此资源的权限")

	// 缓存错误
	ErrEmptyCache = errors.New("缓存为空")

	// 资源未找到错误
	ErrUserNotFound   = errors.New("用户不存在")
	ErrFileNotFound   = errors.New("文件不存在")
	ErrShareNotFound  = errors.New("分享链接不存在")
	ErrUploadNotFound = errors.New("上传进度不存在或已结束")

	// 分享链接不再可用（与"不存在"区分，便于客户端给出准确提示）
	ErrShareExpired   = errors.New("分享链接已过期")
	ErrShareExhausted = errors.New("分享链接下载次数已用完")

	// 业务逻辑冲突
	ErrTokenConflict = errors.New("分享令牌冲突")

	// 数据库与外部服务错误
	ErrDatabaseError  = errors.New("数据库操作失败")
	ErrStorageError   = errors.New("存储服务操作失败")
	ErrObjectNotFound = errors.New("存储对象不存在")
)
