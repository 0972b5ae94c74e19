package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode       = 40000 // 无效的请求参数
	ValidationFailedCode    = 40001 // 参数验证失败
	RetentionOutOfRangeCode = 40002 // 保留期超出允许范围
	InvalidMaxDownloadsCode = 40003 // 最大下载次数非法
	FileNameInvalidCode     = 40004 // 文件名无效

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode       = 40100 // 通用未授权
	TokenInvalidCode       = 40101 // Token 无效或过期
	InvalidCredentialsCode = 40102 // 用户名或密码错误

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode        = 40300 // 通用无权限
	PermissionDeniedCode = 40301 // 权限不足 (细分)

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode       = 40400 // 通用资源未找到
	UserNotFoundCode   = 40401 // 用户不存在
	FileNotFoundCode   = 40402 // 文件不存在
	ShareNotFoundCode  = 40404 // 分享链接不存在
	UploadNotFoundCode = 40406 // 上传进度不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	UserAlreadyExistsCode  = 40900 // 用户名已存在
	EmailAlreadyExistsCode = 40901 // 邮箱已存在
	TokenConflictCode      = 40902 // 分享令牌冲突

	// --- 分享不再可用系列 (410xx) ---
	ShareExpiredCode   = 41000 // 分享链接已过期
	ShareExhaustedCode = 41001 // 分享下载次数已用完

	// --- 上传限制系列 (413xx) ---
	FileTooLargeCode = 41300 // 文件过大

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 存储服务操作失败（如MinIO）
	StorageDesyncCode       = 50003 // 元数据与存储对象不一致
)
